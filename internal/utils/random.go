package utils

import (
	"math/rand"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fabline-dev/shift-planner/backend/internal/domain"
)

var firstNames = []string{
	"Anna", "Ben", "Clara", "David", "Elena", "Felix", "Greta", "Hannes",
	"Ida", "Jonas", "Katja", "Lukas", "Mara", "Niko", "Olga", "Paul",
	"Rosa", "Stefan", "Tanja", "Viktor",
}
var lastNames = []string{
	"Bauer", "Fischer", "Hoffmann", "Keller", "Lang", "Meyer", "Neumann",
	"Richter", "Schmidt", "Vogel", "Wagner", "Weber", "Winkler", "Wolf",
	"Zimmermann",
}

func GenerateRandomFullName() string {
	return firstNames[rand.Intn(len(firstNames))] + " " + lastNames[rand.Intn(len(lastNames))]
}

var roles = []domain.Role{
	domain.RolePlanner,
	domain.RoleSupervisor,
	domain.RoleAdmin,
}

func GenerateRandomRole() domain.Role {
	return roles[rand.Intn(len(roles))]
}

var digits = "0123456789"

func GenerateUsernameFromFullName(fullName string) string {
	username := ""
	for _, r := range fullName {
		if r == ' ' {
			continue
		}
		username += string(r | 0x20) // lowercase ASCII
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	return username
}

func GenerateRandomUser(password string, emailDomainName string) (*domain.User, error) {
	fullName := GenerateRandomFullName()
	username := GenerateUsernameFromFullName(fullName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        username + "@" + emailDomainName,
		Role:         GenerateRandomRole(),
	}

	return user, nil
}

var contractTypes = []domain.ContractType{
	domain.ContractFullTime,
	domain.ContractFullTime,
	domain.ContractPartTime,
	domain.ContractApprentice,
	domain.ContractTemporary,
}

// GenerateRandomEmployee builds a shop-floor worker with a random subset of
// the given skills. Apprentices get low levels, full-timers can reach expert.
func GenerateRandomEmployee(skillIDs []string, emailDomainName string) *domain.Employee {
	fullName := GenerateRandomFullName()
	contract := contractTypes[rand.Intn(len(contractTypes))]

	maxHours := 40.0
	switch contract {
	case domain.ContractPartTime:
		maxHours = 20.0
	case domain.ContractApprentice:
		maxHours = 35.0
	}

	maxLevel := 4
	if contract == domain.ContractApprentice {
		maxLevel = 2
	}

	e := &domain.Employee{
		ID:              uuid.NewString(),
		FullName:        fullName,
		Email:           GenerateUsernameFromFullName(fullName) + "@" + emailDomainName,
		ContractType:    contract,
		MaxHoursPerWeek: maxHours,
		IsActive:        rand.Intn(10) > 0, // roughly one in ten is inactive
	}

	for _, skillID := range skillIDs {
		if rand.Intn(2) == 0 {
			continue
		}
		e.Skills = append(e.Skills, domain.EmployeeSkill{
			SkillID: skillID,
			Level:   rand.Intn(maxLevel) + 1,
		})
	}

	return e
}

func GenerateRandomPassword(length int) string {
	letters := []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")
	password := make([]rune, length)
	for i := range password {
		password[i] = letters[rand.Intn(len(letters))]
	}
	return string(password)
}
