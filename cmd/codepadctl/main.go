package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"codepad/internal/job"
	"codepad/internal/validator"
)

var (
	serverURL string
	language  string
)

func main() {
	root := &cobra.Command{
		Use:   "codepadctl",
		Short: "CLI client for the codepad execution engine",
	}

	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")

	runCmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Submit a source file and stream its terminal I/O",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
	runCmd.Flags().StringVarP(&language, "language", "l", "", "Language (auto-detected from extension)")
	root.AddCommand(runCmd)

	checkCmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a source file locally without executing it",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}
	checkCmd.Flags().StringVarP(&language, "language", "l", "", "Language (auto-detected from extension)")
	root.AddCommand(checkCmd)

	root.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE:  runHealth,
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func detectLanguage(path string) (job.Language, error) {
	if language != "" {
		return job.ParseLanguage(language)
	}
	switch ext := filepath.Ext(path); ext {
	case ".py":
		return job.LangPython, nil
	case ".js":
		return job.LangJavaScript, nil
	case ".c":
		return job.LangC, nil
	case ".cpp", ".cc", ".cxx":
		return job.LangCPP, nil
	case ".rs":
		return job.LangRust, nil
	default:
		return "", fmt.Errorf("cannot detect language for extension %q, use --language", ext)
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	code, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	lang, err := detectLanguage(args[0])
	if err != nil {
		return err
	}

	verdict := validator.Check(lang, code)
	if !verdict.OK {
		return fmt.Errorf("rejected: %s", verdict.Reason)
	}
	fmt.Println("accepted")
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	code, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	lang, err := detectLanguage(args[0])
	if err != nil {
		return err
	}

	created, err := createJob(string(code), lang)
	if err != nil {
		return err
	}

	return attach(created, string(code), lang)
}

type createJobResponse struct {
	JobID    string `json:"job_id"`
	JobToken string `json:"job_token"`
}

func createJob(code string, lang job.Language) (*createJobResponse, error) {
	payload, _ := json.Marshal(map[string]string{
		"code":     code,
		"language": string(lang),
	})

	resp, err := http.Post(serverURL+"/api/jobs", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var created createJobResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &created, nil
}

// attach drives the execute socket: one execute frame, then stdin lines
// as input frames, printing output frames until the terminal event.
func attach(created *createJobResponse, code string, lang job.Language) error {
	wsURL, err := url.Parse(serverURL)
	if err != nil {
		return err
	}
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/ws/execute"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", wsURL, err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteJSON(map[string]string{
		"type":     "execute",
		"jobId":    created.JobID,
		"jobToken": created.JobToken,
		"code":     code,
		"language": string(lang),
	}); err != nil {
		return fmt.Errorf("sending execute frame: %w", err)
	}

	// Forward stdin lines as input frames. The trailing newline rides
	// along so line-oriented programs see a complete line.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			_ = conn.WriteJSON(map[string]string{
				"type": "input",
				"data": scanner.Text() + "\n",
			})
		}
	}()

	for {
		var frame struct {
			Type          string  `json:"type"`
			Stream        string  `json:"stream"`
			Data          string  `json:"data"`
			ExitCode      *int    `json:"exit_code"`
			ExecutionTime float64 `json:"execution_time"`
			Message       string  `json:"message"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("reading frame: %w", err)
		}

		switch frame.Type {
		case "output":
			if frame.Stream == "stderr" {
				fmt.Fprint(os.Stderr, frame.Data)
			} else {
				fmt.Print(frame.Data)
			}
		case "complete":
			exitCode := 0
			if frame.ExitCode != nil {
				exitCode = *frame.ExitCode
			}
			fmt.Fprintf(os.Stderr, "\n[exit %d in %.2fs]\n", exitCode, frame.ExecutionTime)
			return nil
		case "error":
			return fmt.Errorf("execution error: %s", frame.Message)
		}
	}
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(body)))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy (%d)", resp.StatusCode)
	}
	return nil
}
