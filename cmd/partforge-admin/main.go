// ABOUTME: Admin CLI for the partforge API
// ABOUTME: Talks JSON over HTTP with a bearer token from env or token file

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

const banner = `
                   _    __                               _           _
 _ __   __ _ _ __| |_ / _| ___  _ __ __ _  ___     __ _| |_ __ ___ (_)_ __
| '_ \ / _' | '__| __| |_ / _ \| '__/ _' |/ _ \   / _' | | '_ ' _ \| | '_ \
| |_) | (_| | |  | |_|  _| (_) | | | (_| |  __/  | (_| | | | | | | | | | | |
| .__/ \__,_|_|   \__|_|  \___/|_|  \__, |\___|   \__,_|_|_| |_| |_|_|_| |_|
|_|                                 |___/
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	addr := os.Getenv("PARTFORGE_ADDR")
	if addr == "" {
		addr = "http://localhost:8080"
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "login":
		err = cmdLogin(addr, args)
	case "whoami":
		err = cmdWhoami(addr)
	case "projects":
		err = cmdProjects(addr)
	case "audit":
		err = cmdAudit(addr, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: partforge-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  login <email> <password>  Obtain and save a bearer token")
	fmt.Println("  whoami                    Show the authenticated user")
	fmt.Println("  projects                  List projects")
	fmt.Println("  audit [--user ID]         List audit entries (full access only)")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  PARTFORGE_ADDR   Server base URL (default http://localhost:8080)")
	fmt.Println("  PARTFORGE_TOKEN  Bearer token (overrides the token file)")
}

// tokenPath is where login saves the bearer token.
func tokenPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ".partforge-token"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "partforge", "token")
}

func getToken() string {
	if token := os.Getenv("PARTFORGE_TOKEN"); token != "" {
		return token
	}
	data, err := os.ReadFile(tokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func doRequest(method, url, token string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return http.DefaultClient.Do(req)
}

func decodeOrError(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			if apiErr.Detail != "" {
				return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Detail)
			}
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func cmdLogin(addr string, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: partforge-admin login <email> <password>")
	}

	resp, err := doRequest(http.MethodPost, addr+"/api/users/login", "", map[string]string{
		"email":    args[0],
		"password": args[1],
	})
	if err != nil {
		return err
	}

	var out struct {
		Token string `json:"token"`
		User  struct {
			Email      string `json:"email"`
			FullAccess bool   `json:"full_access"`
		} `json:"user"`
	}
	if err := decodeOrError(resp, &out); err != nil {
		return err
	}

	path := tokenPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(out.Token), 0o600); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	color.Green("Logged in as %s", out.User.Email)
	if out.User.FullAccess {
		color.Yellow("full access")
	}
	fmt.Printf("Token saved to %s\n", path)
	return nil
}

func cmdWhoami(addr string) error {
	resp, err := doRequest(http.MethodGet, addr+"/api/me", getToken(), nil)
	if err != nil {
		return err
	}

	var user struct {
		ID          string `json:"id"`
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		FullAccess  bool   `json:"full_access"`
	}
	if err := decodeOrError(resp, &user); err != nil {
		return err
	}

	fmt.Printf("ID:           %s\n", user.ID)
	fmt.Printf("Email:        %s\n", user.Email)
	fmt.Printf("Display name: %s\n", user.DisplayName)
	fmt.Printf("Full access:  %v\n", user.FullAccess)
	return nil
}

func cmdProjects(addr string) error {
	resp, err := doRequest(http.MethodGet, addr+"/api/projects", getToken(), nil)
	if err != nil {
		return err
	}

	var projects []struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		CreatorID string    `json:"creator_id"`
		CreatedAt time.Time `json:"created_at"`
	}
	if err := decodeOrError(resp, &projects); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREATOR\tCREATED")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.CreatorID, p.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func cmdAudit(addr string, args []string) error {
	url := addr + "/api/audit"
	for i := 0; i < len(args); i++ {
		if args[i] == "--user" && i+1 < len(args) {
			url += "?user_id=" + args[i+1]
			i++
		}
	}

	resp, err := doRequest(http.MethodGet, url, getToken(), nil)
	if err != nil {
		return err
	}

	var entries []struct {
		UserID    *string   `json:"user_id"`
		Action    string    `json:"action"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := decodeOrError(resp, &entries); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tUSER\tACTION")
	for _, e := range entries {
		user := "-"
		if e.UserID != nil {
			user = *e.UserID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Timestamp.Format(time.RFC3339), user, e.Action)
	}
	return w.Flush()
}
