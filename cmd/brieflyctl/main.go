// Command brieflyctl is a small terminal client for a running briefly
// server: one-shot summaries, an interactive chat loop, and transcript
// exports.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"briefly/pkg/domain"
	"briefly/pkg/queue"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "briefly server base URL")
	session := flag.String("session", "", "session id (defaults to a per-user value)")
	maxTokens := flag.Int("max-tokens", 0, "output token bound, 0 uses the server default")
	flag.Parse()

	if *session == "" {
		*session = defaultSession()
	}

	client := &apiClient{baseURL: strings.TrimRight(*serverURL, "/"), session: *session}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	var err error
	switch args[0] {
	case "summarize":
		err = runSummarize(client, args[1:], *maxTokens)
	case "chat":
		err = runChat(client, *maxTokens)
	case "export":
		err = runExport(client, args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: brieflyctl [flags] <command>")
	fmt.Fprintln(os.Stderr, "  summarize [file]   summarize a file or stdin")
	fmt.Fprintln(os.Stderr, "  chat               interactive chat session")
	fmt.Fprintln(os.Stderr, "  export <convId>    export a conversation transcript")
	fmt.Fprintln(os.Stderr, "flags: -server, -session, -max-tokens")
}

func defaultSession() string {
	host, err := os.Hostname()
	if err != nil {
		host = "local"
	}
	return "cli-" + host
}

type apiClient struct {
	baseURL string
	session string
}

func (c *apiClient) do(method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-Id", c.session)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("server: %s", apiErr.Error)
		}
		return fmt.Errorf("server: status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func runSummarize(client *apiClient, args []string, maxTokens int) error {
	var text []byte
	var err error
	if len(args) > 0 {
		text, err = os.ReadFile(args[0])
	} else {
		text, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return err
	}
	var result domain.GenerationResult
	if err := client.do(http.MethodPost, "/v1/summaries", map[string]any{
		"text":      string(text),
		"maxTokens": maxTokens,
	}, &result); err != nil {
		return err
	}
	fmt.Println(result.Text)
	return nil
}

func runChat(client *apiClient, maxTokens int) error {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	magenta := color.New(color.FgMagenta, color.Bold)
	yellow := color.New(color.FgYellow)

	var settings domain.Settings
	if err := client.do(http.MethodGet, "/v1/settings", nil, &settings); err != nil {
		settings = domain.DefaultSettings()
	}

	cyan.Println("briefly chat")
	yellow.Println("Type your message. Commands: 'history', 'exit'.")

	conversationID := ""
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		green.Print(prefix("You", settings))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		switch strings.ToLower(input) {
		case "exit", "quit":
			cyan.Println("bye")
			return nil
		case "history":
			if conversationID == "" {
				yellow.Println("no messages yet")
				continue
			}
			var body struct {
				Messages []domain.Message `json:"messages"`
			}
			if err := client.do(http.MethodGet, "/v1/conversations/"+conversationID+"/messages", nil, &body); err != nil {
				return err
			}
			for _, msg := range body.Messages {
				who := "You"
				c := green
				if msg.Role == "assistant" {
					who = settings.AssistantName
					c = magenta
				}
				c.Printf("%s%s\n", prefix(who, settings), msg.Content)
			}
			continue
		}

		var reply domain.ChatReply
		if err := client.do(http.MethodPost, "/v1/chats", map[string]any{
			"conversationId": conversationID,
			"message":        input,
			"maxTokens":      maxTokens,
		}, &reply); err != nil {
			color.New(color.FgRed).Printf("error: %v\n", err)
			continue
		}
		conversationID = reply.ConversationID
		magenta.Printf("%s%s\n", prefix(settings.AssistantName, settings), reply.Reply)
	}
}

func prefix(who string, settings domain.Settings) string {
	if settings.ShowTimestamps {
		return fmt.Sprintf("%s (%s): ", who, time.Now().Format("15:04:05"))
	}
	return who + ": "
}

func runExport(client *apiClient, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("export needs a conversation id")
	}
	var job queue.JobStatus
	if err := client.do(http.MethodPost, "/v1/exports", map[string]any{"conversationId": args[0]}, &job); err != nil {
		return err
	}
	fmt.Printf("export queued: %s\n", job.ID)

	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(2 * time.Second)
		var status struct {
			Job      queue.JobStatus  `json:"job"`
			Artifact *domain.Artifact `json:"artifact"`
		}
		if err := client.do(http.MethodGet, "/v1/exports/"+job.ID, nil, &status); err != nil {
			return err
		}
		switch status.Job.Status {
		case queue.StatusDone:
			if status.Artifact != nil {
				fmt.Printf("done: %s\n", status.Artifact.DownloadURL)
			} else {
				fmt.Println("done")
			}
			return nil
		case queue.StatusFailed:
			return fmt.Errorf("export failed: %s", status.Job.ErrorMessage)
		}
	}
	return fmt.Errorf("export %s still pending, check later with the API", job.ID)
}
