package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var rpcURL string

// rpcCmd sends a single JSON-RPC request to a running daemon.
var rpcCmd = &cobra.Command{
	Use:   "rpc <method> [params-json]",
	Short: "Call a JSON-RPC method on a running daemon",
	Long: `Send one JSON-RPC request to a running levyd and pretty-print the result.

The endpoint defaults to the api.listen address from the configuration;
--url overrides it. Parameters are passed as a single JSON object.

Examples:
  levyd rpc server_info
  levyd rpc balance '{"account":"<address>"}'
  levyd rpc submit '{"sender":"<address>","receiver":"<address>","amount":1000}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRPC,
}

func init() {
	rootCmd.AddCommand(rpcCmd)

	rpcCmd.Flags().StringVar(&rpcURL, "url", "", "JSON-RPC endpoint (default http://<api.listen>/)")
}

type rpcRequest struct {
	JsonRpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      uint64          `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int         `json:"code"`
		Message string      `json:"message"`
		Data    interface{} `json:"data,omitempty"`
	} `json:"error"`
}

func runRPC(cmd *cobra.Command, args []string) error {
	req := rpcRequest{JsonRpc: "2.0", Method: args[0], ID: 1}
	if len(args) == 2 {
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("params are not valid JSON: %s", args[1])
		}
		req.Params = json.RawMessage(args[1])
	}

	endpoint := rpcURL
	if endpoint == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		endpoint = "http://" + cfg.API.Listen + "/"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer httpResp.Body.Close()

	var resp rpcResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.Error != nil {
		if resp.Error.Data != nil {
			return fmt.Errorf("RPC error [%d]: %s (%v)", resp.Error.Code, resp.Error.Message, resp.Error.Data)
		}
		return fmt.Errorf("RPC error [%d]: %s", resp.Error.Code, resp.Error.Message)
	}

	pretty, err := json.MarshalIndent(resp.Result, "", "  ")
	if err != nil {
		fmt.Println(string(resp.Result))
		return nil
	}
	fmt.Println(string(pretty))
	return nil
}
