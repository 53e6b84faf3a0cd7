package tsqlgenctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// requestError marks failures that happened after the command line parsed.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }

// Run executes one tsqlgenctl command and returns the process exit code: 0 on
// success, 1 when the request or the server failed, 2 on usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	cmd := newRootCmd(defaults, stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		_, _ = fmt.Fprintln(stderr, reqErr.Error())
		return 1
	}
	_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
	_, _ = fmt.Fprint(stderr, cmd.UsageString())
	return 2
}

func newRootCmd(defaults Options, stdout io.Writer) *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
	)
	client := func() *http.Client {
		if defaults.HTTPClient != nil {
			return defaults.HTTPClient
		}
		return &http.Client{Timeout: timeout}
	}
	call := func(cmd *cobra.Command, method, path string, body any) error {
		endpoint := strings.TrimRight(baseURL, "/") + path
		code, responseBody, err := doRequest(cmd.Context(), client(), method, endpoint, body)
		if err != nil {
			return &requestError{err: fmt.Errorf("request failed: %w", err)}
		}
		if code >= 400 {
			return &requestError{err: fmt.Errorf("http %d: %s", code, strings.TrimSpace(string(responseBody)))}
		}
		writeBody(stdout, responseBody)
		return nil
	}

	root := &cobra.Command{
		Use:           "tsqlgenctl",
		Short:         "Command-line client for the T-SQL generator API",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return errors.New("a command is required")
		},
	}
	root.PersistentFlags().StringVar(&baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "API base URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", durationOr(defaults.Timeout, 90*time.Second), "HTTP timeout (e.g. 30s)")

	root.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "GET /v1/health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, http.MethodGet, "/v1/health", nil)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "ready",
		Short: "GET /v1/ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, http.MethodGet, "/v1/ready", nil)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "schema <database>",
		Short: "GET /v1/databases/{database}/schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, http.MethodGet, "/v1/databases/"+url.PathEscape(args[0])+"/schema", nil)
		},
	})

	var database string
	generate := &cobra.Command{
		Use:   "generate --db <database> <prompt...>",
		Short: "POST /v1/generate-sql",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(database) == "" {
				return errors.New("--db is required")
			}
			return call(cmd, http.MethodPost, "/v1/generate-sql", map[string]string{
				"db_name": database,
				"prompt":  strings.Join(args, " "),
			})
		},
	}
	generate.Flags().StringVar(&database, "db", "", "target database name")
	root.AddCommand(generate)

	return root
}

func doRequest(ctx context.Context, client *http.Client, method, url string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

// writeBody prints generated SQL as plain text and everything else as
// indented JSON.
func writeBody(w io.Writer, raw []byte) {
	var generated struct {
		GeneratedSQL *string `json:"generated_sql"`
	}
	if err := json.Unmarshal(raw, &generated); err == nil && generated.GeneratedSQL != nil {
		_, _ = fmt.Fprintln(w, *generated.GeneratedSQL)
		return
	}
	if pretty, ok := prettyJSON(raw); ok {
		_, _ = fmt.Fprintln(w, pretty)
		return
	}
	if len(raw) > 0 {
		_, _ = fmt.Fprintln(w, string(raw))
	}
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
