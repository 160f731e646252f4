package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

// newAdminCommand builds the ban/unban/status operator subcommands.
// Each is a thin HTTP client against the gateway's own admin API
// (/api/admin/security, /api/security-status) — it adds no new
// gateway-side surface, mirroring the teacher's cli.Run first-argument
// dispatch generalized to cobra subcommands.
func newAdminCommand(_ *string) *cobra.Command {
	var gatewayURL string
	var adminKey string

	admin := &cobra.Command{
		Use:   "admin",
		Short: "Operator commands against a running gateway's admin API",
	}
	admin.PersistentFlags().StringVar(&gatewayURL, "url", "http://localhost:8080", "base URL of the running gateway")
	admin.PersistentFlags().StringVar(&adminKey, "admin-key", os.Getenv("GATEWAY_ADMIN_KEY"), "admin API key")

	admin.AddCommand(&cobra.Command{
		Use:   "ban <ip>",
		Short: "Ban an IP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postSecurityAction(gatewayURL, adminKey, "ban", args[0])
		},
	})
	admin.AddCommand(&cobra.Command{
		Use:   "unban <ip>",
		Short: "Unban an IP and start its grace period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postSecurityAction(gatewayURL, adminKey, "unban", args[0])
		},
	})
	admin.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the gateway's security-ledger snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getSecurityStatus(gatewayURL, adminKey)
		},
	})

	return admin
}

func postSecurityAction(baseURL, adminKey, action, ip string) error {
	payload, err := json.Marshal(map[string]string{"action": action, "ip": ip})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/admin/security", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+adminKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Println(string(body))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gateway returned %s", resp.Status)
	}
	return nil
}

func getSecurityStatus(baseURL, adminKey string) error {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/security-status", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+adminKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Println(string(body))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gateway returned %s", resp.Status)
	}
	return nil
}
