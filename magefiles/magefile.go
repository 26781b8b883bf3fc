//go:build mage

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/joho/godotenv"
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	apiBinary   = "bin/attendance-api"
	agentBinary = "bin/attendance-agent"
)

// Build compiles the api server and the agent into ./bin.
func Build() error {
	mg.Deps(Tidy)
	fmt.Println(">> Building api binary...")
	if err := sh.Run("go", "build", "-o", apiBinary, "./cmd/api"); err != nil {
		return err
	}
	fmt.Println(">> Building agent binary...")
	return sh.Run("go", "build", "-o", agentBinary, "./cmd/agent")
}

// Run builds then starts the api server.
func Run() error {
	mg.Deps(Build)
	fmt.Println(">> Starting api server...")
	return sh.RunV(apiBinary)
}

// RunAgent builds then starts the agent for EMPLOYEE_ID.
func RunAgent() error {
	mg.Deps(Build)
	fmt.Println(">> Starting agent...")
	return sh.RunV(agentBinary, "run")
}

// Token prints an access token for EMPLOYEE_ID.
func Token() error {
	employeeID := os.Getenv("EMPLOYEE_ID")
	if employeeID == "" {
		return fmt.Errorf("EMPLOYEE_ID is required")
	}
	return sh.RunV("go", "run", "./cmd/api", "token", "--employee", employeeID)
}

// Tidy runs go mod tidy.
func Tidy() error {
	fmt.Println(">> go mod tidy...")
	return sh.Run("go", "mod", "tidy")
}

// Test runs all unit tests. Repository tests need TEST_DATABASE_URL.
func Test() error {
	fmt.Println(">> Running tests...")
	return sh.RunV("go", "test", "-race", "./...")
}

// Lint runs golangci-lint if available.
func Lint() error {
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		fmt.Println(">> golangci-lint not found; skipping.")
		return nil
	}
	return sh.Run("golangci-lint", "run", "./...")
}

// Clean removes build artifacts and the local offline queue.
func Clean() error {
	fmt.Println(">> Cleaning...")
	if err := os.RemoveAll("bin"); err != nil {
		return err
	}
	queue := os.Getenv("QUEUE_PATH")
	if queue == "" {
		queue = "attendance-queue.db"
	}
	if err := os.Remove(queue); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func init() {
	err := godotenv.Load()
	if err != nil {
		slog.Warn("error loading .env file", "err", err)
	}
}
