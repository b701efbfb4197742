package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	"logbot-service/internal/api"
	"logbot-service/internal/types"
)

const clientTimeout = 10 * time.Second

func endpoint(path string) string {
	return strings.TrimRight(serverURL, "/") + path
}

func request(agent *fiber.Agent) (int, []byte, error) {
	code, body, errs := agent.Timeout(clientTimeout).Bytes()
	if len(errs) > 0 {
		return 0, nil, errors.Join(errs...)
	}
	return code, body, nil
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "send <action>",
		Short:     "Ask the daemon to run an action",
		Example:   "  logbot send calibrate\n  logbot send edge\n  logbot send stop",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"demo", "calibrate", "edge", "follow", "stop"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := types.ParseAction(args[0])
			if err != nil {
				return err
			}

			code, body, err := request(fiber.Post(endpoint("/v1/" + kind.Route())))
			if err != nil {
				return fmt.Errorf("send %s: %w", kind, err)
			}
			if code != http.StatusOK {
				return fmt.Errorf("send %s: HTTP %d", kind, code)
			}

			var resp api.DispatchResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatResponse(kind, resp))
			if resp.Status != http.StatusOK {
				return fmt.Errorf("%s not accepted (%d)", kind, resp.Status)
			}
			return nil
		},
	}
}

func formatResponse(kind types.ActionKind, resp api.DispatchResponse) string {
	reason := "-"
	if resp.Reason != nil {
		reason = *resp.Reason
	}
	return fmt.Sprintf("%s: %d %s (%s)", kind, resp.Status, http.StatusText(resp.Status), reason)
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the daemon is healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, _, err := request(fiber.Get(endpoint("/v1/health")))
			if err != nil {
				return err
			}
			if code != http.StatusOK {
				fmt.Fprintln(cmd.OutOrStdout(), "unhealthy")
				return fmt.Errorf("health check returned HTTP %d", code)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "healthy")
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, body, err := request(fiber.Get(endpoint("/v1/status")))
			if err != nil {
				return err
			}
			if code != http.StatusOK {
				return fmt.Errorf("status returned HTTP %d", code)
			}

			var out bytes.Buffer
			if err := json.Indent(&out, body, "", "  "); err != nil {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.String())
			return nil
		},
	}
}
