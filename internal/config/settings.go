package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Settings is the run configuration, read once at startup and validated.
type Settings struct {
	DatabaseURL           string
	DBSecretID            string `validate:"required_without=DatabaseURL"`
	Bucket                string `validate:"required_without=OutDir"`
	OutDir                string
	OutputPrefix          string
	LookbackDays          int    `validate:"min=1,max=366"`
	KThreshold            int    `validate:"min=2"`
	PseudonymSalt         string `validate:"required_without=PseudonymSaltSecretID"`
	PseudonymSaltSecretID string
	AgeBracketScheme      string        `validate:"oneof=standard adult"`
	OutcomesMode          string        `validate:"oneof=aggregate individual"`
	OutputFormat          string        `validate:"oneof=parquet ndjson"`
	OutputCompression     string        `validate:"oneof=none snappy"`
	StatementTimeout      time.Duration `validate:"min=1s"`
	ParallelDomains       bool
	Domains               []string `validate:"dive,oneof=tenants usage outcomes"`
	PushgatewayURL        string   `validate:"omitempty,url"`
	AWSRegion             string   `validate:"required"`
	S3Endpoint            string   `validate:"omitempty,url"`
}

// FromEnv snapshots the flat env accessors. Call Load first.
func FromEnv() Settings {
	return Settings{
		DatabaseURL:           DatabaseURL(),
		DBSecretID:            DBSecretID(),
		Bucket:                DataLakeBucket(),
		OutputPrefix:          OutputPrefix(),
		LookbackDays:          LookbackDays(),
		KThreshold:            KAnonymityThreshold(),
		PseudonymSalt:         PseudonymSalt(),
		PseudonymSaltSecretID: PseudonymSaltSecretID(),
		AgeBracketScheme:      AgeBracketScheme(),
		OutcomesMode:          OutcomesMode(),
		OutputFormat:          OutputFormat(),
		OutputCompression:     OutputCompression(),
		StatementTimeout:      StatementTimeout(),
		ParallelDomains:       ParallelDomains(),
		PushgatewayURL:        PushgatewayURL(),
		AWSRegion:             AWSRegion(),
		S3Endpoint:            S3Endpoint(),
	}
}

var validate = validator.New()

// Validate reports every invalid field in one error.
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
}
