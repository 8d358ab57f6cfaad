package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/agep/exam-backend/internal/config"
	"github.com/agep/exam-backend/internal/logger"
	"github.com/agep/exam-backend/internal/service"
)

// issue-token mints a bearer token signed with JWT_SECRET. Production tokens
// come from the school's account system; this is for local testing and
// for accessibility testers driving the API with a screen reader.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	authService := service.NewAuthService(cfg)

	// Piped usage: issue-token <user_id> <roles> [ttl]
	if !term.IsTerminal(int(os.Stdin.Fd())) || len(os.Args) > 1 {
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: issue-token <user_id> <role[,role...]> [ttl]")
			os.Exit(2)
		}
		ttl := "8h"
		if len(os.Args) > 3 {
			ttl = os.Args[3]
		}
		token, err := issue(authService, os.Args[1], os.Args[2], ttl)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to issue token")
		}
		fmt.Println(token)
		return
	}

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("=== Issue Bearer Token ===")

	fmt.Print("Enter User ID: ")
	userID, _ := reader.ReadString('\n')

	fmt.Print("Enter Roles (comma separated, e.g. student,grade-10): ")
	roles, _ := reader.ReadString('\n')

	fmt.Print("Enter TTL (default 8h): ")
	ttl, _ := reader.ReadString('\n')
	if strings.TrimSpace(ttl) == "" {
		ttl = "8h"
	}

	token, err := issue(authService, userID, roles, ttl)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	fmt.Printf("\nToken:\n%s\n", token)
}

func issue(authService *service.AuthService, rawID, rawRoles, rawTTL string) (string, error) {
	userID, err := strconv.Atoi(strings.TrimSpace(rawID))
	if err != nil || userID <= 0 {
		return "", fmt.Errorf("user id must be a positive number")
	}

	var roles []string
	for _, r := range strings.Split(rawRoles, ",") {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			roles = append(roles, r)
		}
	}
	if len(roles) == 0 {
		return "", fmt.Errorf("at least one role is required")
	}

	ttl, err := time.ParseDuration(strings.TrimSpace(rawTTL))
	if err != nil || ttl <= 0 {
		return "", fmt.Errorf("ttl must be a positive duration such as 90m or 8h")
	}

	return authService.GenerateToken(userID, roles, ttl)
}
