package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"vcard-wallet-go/internal/models"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// DefaultCardProgram is the issuing program used when no program file exists.
func DefaultCardProgram() models.CardProgram {
	return models.CardProgram{
		CardProductToken:  "4ced22ea-0d16-4e75-acf7-b877b63d0719",
		FulfillmentReason: "NEW",
		DefaultUser: models.DefaultUserProgram{
			FirstName:   "Default",
			LastName:    "User",
			EmailDomain: "example.com",
		},
		Address: models.ProgramAddress{
			Address1:   "123 Main St",
			City:       "Cairo",
			State:      "C",
			PostalCode: "12345",
			Country:    "EG",
		},
	}
}

// LoadCardProgram reads the program file, filling any field it leaves empty
// from DefaultCardProgram. A missing file yields the defaults.
func LoadCardProgram(programFile string) (models.CardProgram, error) {
	var programPath string
	if filepath.IsAbs(programFile) {
		programPath = programFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return models.CardProgram{}, fmt.Errorf("failed to get working directory: %w", err)
		}
		programPath = filepath.Join(wd, programFile)
	}

	program := DefaultCardProgram()
	data, err := os.ReadFile(programPath)
	if errors.Is(err, os.ErrNotExist) {
		zap.L().Info("No card program file, using defaults", zap.String("path", programPath))
		return program, nil
	}
	if err != nil {
		return models.CardProgram{}, fmt.Errorf("unable to read %s: %w", programFile, err)
	}

	var loaded models.CardProgram
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return models.CardProgram{}, fmt.Errorf("unable to parse %s: %w", programFile, err)
	}
	mergeProgram(&program, loaded)

	if len(program.Address.Country) != 2 {
		return models.CardProgram{}, fmt.Errorf("program address country must be a two-letter code, got %q", program.Address.Country)
	}
	return program, nil
}

// CardProgramOrDefault loads the program file, falling back to the built-in
// program when the file cannot be used.
func CardProgramOrDefault(programFile string) models.CardProgram {
	program, err := LoadCardProgram(programFile)
	if err != nil {
		zap.L().Warn("Unusable card program file, using defaults",
			zap.String("file", programFile),
			zap.Error(err))
		return DefaultCardProgram()
	}
	return program
}

func mergeProgram(dst *models.CardProgram, src models.CardProgram) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&dst.CardProductToken, src.CardProductToken)
	set(&dst.FulfillmentReason, src.FulfillmentReason)
	set(&dst.DefaultUser.FirstName, src.DefaultUser.FirstName)
	set(&dst.DefaultUser.LastName, src.DefaultUser.LastName)
	set(&dst.DefaultUser.EmailDomain, src.DefaultUser.EmailDomain)
	set(&dst.Address.Address1, src.Address.Address1)
	set(&dst.Address.City, src.Address.City)
	set(&dst.Address.State, src.Address.State)
	set(&dst.Address.PostalCode, src.Address.PostalCode)
	set(&dst.Address.Country, src.Address.Country)
}
