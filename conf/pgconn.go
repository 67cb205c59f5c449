package conf

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/aws/aws-sdk-go-v2/aws"
)

func GetPgConnStrFromEnv() string {
	host := os.Getenv("POSTGRES_HOST")
	user := os.Getenv("POSTGRES_USER")
	port := os.Getenv("POSTGRES_PORT")
	db := os.Getenv("POSTGRES_DB")
	ssl := os.Getenv("POSTGRES_SSLMODE")

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, getPgPasswordFromEnv(host), db, ssl)
}

// GetPgUrlFromEnv builds the URL form of the connection string, as consumed
// by golang-migrate (scheme "pgx5").
func GetPgUrlFromEnv(scheme string) string {
	host := os.Getenv("POSTGRES_HOST")
	user := os.Getenv("POSTGRES_USER")
	port := os.Getenv("POSTGRES_PORT")
	db := os.Getenv("POSTGRES_DB")
	ssl := os.Getenv("POSTGRES_SSLMODE")

	return fmt.Sprintf("%s://%s:%s@%s:%s/%s?sslmode=%s",
		scheme, url.QueryEscape(user), url.QueryEscape(getPgPasswordFromEnv(host)),
		host, port, db, ssl)
}

func getPgPasswordFromEnv(host string) string {
	if host == "localhost" {
		return os.Getenv("POSTGRES_PW")
	}
	secretName := os.Getenv("POSTGRES_PASSWORD_SECRET_NAME")
	secretValue, err := getSecretFromAWS(secretName)
	if err != nil {
		panic(fmt.Sprintf("failed to get postgres password from AWS: %v", err))
	}
	var secret struct {
		Password string `json:"password"`
	}
	if err := json.Unmarshal([]byte(secretValue), &secret); err != nil {
		panic(fmt.Sprintf("failed to parse postgres password secret: %v", err))
	}
	return secret.Password
}

func getSecretFromAWS(secretName string) (string, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return "", err
	}
	svc := secretsmanager.NewFromConfig(cfg)
	input := &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := svc.GetSecretValue(ctx, input)
	if err != nil {
		return "", err
	}
	return *result.SecretString, nil
}
