// Command issue-token signs a student or admin JWT for local testing.
// Login lives in the registration system; this tool stands in for it.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/service"
	"golang.org/x/term"
)

func main() {
	typ := flag.String("type", "", "token type: student or admin")
	user := flag.Int("user", 0, "student or admin ID")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	// Prompt only when a person is typing; scripts must pass flags.
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	reader := bufio.NewReader(os.Stdin)

	if *typ == "" && interactive {
		fmt.Print("Token type (student/admin, default student): ")
		line, _ := reader.ReadString('\n')
		*typ = strings.TrimSpace(line)
	}
	if *typ == "" {
		*typ = string(service.TokenTypeStudent)
	}
	tokenType := service.TokenType(*typ)
	if tokenType != service.TokenTypeStudent && tokenType != service.TokenTypeAdmin {
		fmt.Fprintln(os.Stderr, "Error: type must be student or admin")
		os.Exit(2)
	}

	if *user == 0 && interactive {
		fmt.Print("User ID: ")
		line, _ := reader.ReadString('\n')
		id, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error: user ID must be a number")
			os.Exit(2)
		}
		*user = id
	}
	if *user <= 0 {
		fmt.Fprintln(os.Stderr, "Error: user ID is required")
		os.Exit(2)
	}

	token, err := service.NewAuthService(cfg).GenerateToken(tokenType, *user)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Printf("\n%s token for user %d (valid %s):\n\n%s\n", tokenType, *user, cfg.JWTExpiry, token)
		return
	}
	fmt.Println(token)
}
