package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/webintel-network/webledger/internal/daemon"
)

// ─── Client Commands ────────────────────────────────────────────────────────
// These talk to a running daemon over HTTP. Intended for operators and for
// verifying a deployment; production deposits come from the settlement
// layer, not this CLI.

func init() {
	rootCmd.AddCommand(depositCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(historyCmd)

	depositCmd.Flags().String("tx-id", "", "settlement transaction id (generated when omitted)")
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// daemonAddr resolves the daemon base URL from --addr or the config file.
func daemonAddr(cmd *cobra.Command) string {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		return "http://" + addr
	}
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return "http://" + daemon.DefaultConfig().API.Addr()
	}
	return "http://" + cfg.API.Addr()
}

func postDaemon(cmd *cobra.Command, path string, body interface{}, out interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(daemonAddr(cmd)+path, "application/json", bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("daemon unreachable (is 'webledger serve' running?): %w", err)
	}
	return decodeDaemon(resp, out)
}

func getDaemon(cmd *cobra.Command, path string, out interface{}) error {
	resp, err := httpClient.Get(daemonAddr(cmd) + path)
	if err != nil {
		return fmt.Errorf("daemon unreachable (is 'webledger serve' running?): %w", err)
	}
	return decodeDaemon(resp, out)
}

func decodeDaemon(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		body, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%s", apiErr.Error.Message)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type accountOut struct {
	WalletAddress     string `json:"wallet_address"`
	BalanceUSD        string `json:"balance_usd"`
	TotalDepositedUSD string `json:"total_deposited_usd"`
	TotalSpentUSD     string `json:"total_spent_usd"`
	Tier              string `json:"tier"`
}

func printAccount(a accountOut) {
	fmt.Fprintf(os.Stdout, "Wallet:          %s\n", a.WalletAddress)
	fmt.Fprintf(os.Stdout, "Balance:         $%s\n", a.BalanceUSD)
	fmt.Fprintf(os.Stdout, "Total deposited: $%s\n", a.TotalDepositedUSD)
	fmt.Fprintf(os.Stdout, "Total spent:     $%s\n", a.TotalSpentUSD)
	fmt.Fprintf(os.Stdout, "Tier:            %s\n", a.Tier)
}

// ─── deposit ────────────────────────────────────────────────────────────────

var depositCmd = &cobra.Command{
	Use:   "deposit WALLET AMOUNT_USD",
	Short: "Credit a wallet with a confirmed payment",
	Args:  cobra.ExactArgs(2),
	RunE:  runDeposit,
}

func runDeposit(cmd *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[1], err)
	}
	txID, _ := cmd.Flags().GetString("tx-id")
	if txID == "" {
		txID = uuid.NewString()
	}

	var out struct {
		Account         accountOut `json:"account"`
		BonusAccruedUSD string     `json:"bonus_accrued_usd"`
	}
	err = postDaemon(cmd, "/v1/credits/deposit", map[string]interface{}{
		"wallet":     args[0],
		"amount_usd": amount,
		"tx_id":      txID,
	}, &out)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Deposited $%s (bonus $%s, tx %s)\n", amount.StringFixed(2), out.BonusAccruedUSD, txID)
	printAccount(out.Account)
	return nil
}

// ─── balance ────────────────────────────────────────────────────────────────

var balanceCmd = &cobra.Command{
	Use:   "balance WALLET",
	Short: "Show a wallet's balance and tier",
	Args:  cobra.ExactArgs(1),
	RunE:  runBalance,
}

func runBalance(cmd *cobra.Command, args []string) error {
	var out accountOut
	if err := getDaemon(cmd, "/v1/credits/"+args[0], &out); err != nil {
		return err
	}
	printAccount(out)
	return nil
}

// ─── history ────────────────────────────────────────────────────────────────

var historyCmd = &cobra.Command{
	Use:   "history WALLET",
	Short: "Show a wallet's recent transactions, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	var out struct {
		Transactions []struct {
			ID          string    `json:"id"`
			Type        string    `json:"type"`
			AmountUSD   string    `json:"amount_usd"`
			Description string    `json:"description"`
			Timestamp   time.Time `json:"timestamp"`
		} `json:"transactions"`
	}
	if err := getDaemon(cmd, "/v1/credits/"+args[0]+"/transactions", &out); err != nil {
		return err
	}

	if len(out.Transactions) == 0 {
		fmt.Fprintln(os.Stdout, "No transactions.")
		return nil
	}
	for _, tx := range out.Transactions {
		fmt.Fprintf(os.Stdout, "%s  %-8s %10s  %s  %s\n",
			tx.Timestamp.Local().Format("2006-01-02 15:04:05"), tx.Type, tx.AmountUSD, tx.ID, tx.Description)
	}
	return nil
}
