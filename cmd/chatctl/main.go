package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/matheus3301/chatd/internal/auth"
	"github.com/matheus3301/chatd/internal/client"
	"github.com/matheus3301/chatd/internal/config"
	"github.com/matheus3301/chatd/internal/paths"
)

func main() {
	addrFlag := flag.String("addr", envOr("CHATD_URL", "http://localhost:5000"), "server base URL")
	tokenFlag := flag.String("token", os.Getenv("CHATD_TOKEN"), "bearer token")
	configFlag := flag.String("config", paths.ConfigPath(paths.DefaultDataDir()), "config file (for token mint)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := client.New(*addrFlag, *tokenFlag)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "signup":
		need(args, 4, "chatctl signup <full-name> <email> <password>")
		s, err := c.Signup(ctx, args[1], args[2], args[3])
		cmdSession(s, err, *jsonFlag)
	case "login":
		need(args, 3, "chatctl login <email> <password>")
		s, err := c.Login(ctx, args[1], args[2])
		cmdSession(s, err, *jsonFlag)
	case "online":
		cmdOnline(ctx, c, *jsonFlag)
	case "send":
		need(args, 3, "chatctl send <peer-id> <text>")
		cmdSend(ctx, c, args[1], args[2], *jsonFlag)
	case "unseen":
		cmdUnseen(ctx, c, *jsonFlag)
	case "token":
		if len(args) < 3 || args[1] != "mint" {
			fmt.Fprintln(os.Stderr, "usage: chatctl token mint <user-id>")
			os.Exit(1)
		}
		cmdTokenMint(*configFlag, args[2])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: chatctl [--addr <url>] [--token <token>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                          Show server status")
	fmt.Fprintln(os.Stderr, "  signup <name> <email> <pass>    Create an account and print its token")
	fmt.Fprintln(os.Stderr, "  login <email> <pass>            Log in and print a token")
	fmt.Fprintln(os.Stderr, "  online                          List online users")
	fmt.Fprintln(os.Stderr, "  send <peer-id> <text>           Send a message")
	fmt.Fprintln(os.Stderr, "  unseen                          Show unseen counts per peer")
	fmt.Fprintln(os.Stderr, "  token mint <user-id>            Sign a token with the configured secret")
}

func need(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Fprintln(os.Stderr, "usage: "+usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func cmdStatus(ctx context.Context, c *client.Client, jsonOut bool) {
	st, err := c.Status(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(st)
		return
	}
	fmt.Printf("State:  %s (since %s)\n", st.State, st.Since)
	fmt.Printf("Online: %d\n", st.Online)
	fmt.Printf("Store:  %s\n", st.Store)
	fmt.Printf("PID:    %d\n", st.PID)
}

func cmdSession(s *client.Session, err error, jsonOut bool) {
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(s)
		return
	}
	fmt.Printf("User:  %s (%s)\n", s.User.FullName, s.User.ID)
	fmt.Printf("Token: %s\n", s.Token)
}

func cmdOnline(ctx context.Context, c *client.Client, jsonOut bool) {
	users, err := c.Online(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(users)
		return
	}
	if len(users) == 0 {
		fmt.Println("Nobody online.")
		return
	}
	for _, u := range users {
		fmt.Println(u)
	}
}

func cmdSend(ctx context.Context, c *client.Client, peer, text string, jsonOut bool) {
	m, err := c.Send(ctx, peer, text)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(m)
		return
	}
	fmt.Printf("Sent %s at %s\n", m.ID, m.CreatedAt.Format(time.RFC3339))
}

func cmdUnseen(ctx context.Context, c *client.Client, jsonOut bool) {
	sb, err := c.Sidebar(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(sb.Unseen)
		return
	}
	if len(sb.Unseen) == 0 {
		fmt.Println("No unseen messages.")
		return
	}
	names := make(map[string]string, len(sb.Users))
	for _, u := range sb.Users {
		names[u.ID] = u.FullName
	}
	peers := make([]string, 0, len(sb.Unseen))
	for id := range sb.Unseen {
		peers = append(peers, id)
	}
	sort.Strings(peers)
	for _, id := range peers {
		fmt.Printf("%-36s %-20s %d\n", id, names[id], sb.Unseen[id])
	}
}

func cmdTokenMint(configPath, userID string) {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		fail(err)
	}
	if cfg.Auth.JWTSecret == "" {
		fail(fmt.Errorf("no jwt secret configured (set JWT_SECRET or auth.jwt_secret)"))
	}
	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL.Duration)
	if err != nil {
		fail(err)
	}
	tok, err := tokens.Mint(userID)
	if err != nil {
		fail(err)
	}
	fmt.Println(tok)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
