package cli

import (
	"context"
	"io"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/mrz1836/conduit/internal/chain"
	"github.com/mrz1836/conduit/internal/chain/eth"
	"github.com/mrz1836/conduit/internal/contract"
	"github.com/mrz1836/conduit/internal/dispatch"
	"github.com/mrz1836/conduit/internal/output"
	"github.com/mrz1836/conduit/internal/supervisor"
	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// defaultWaitTimeout bounds send --wait.
const defaultWaitTimeout = 10 * time.Minute

// targetFlags selects a contract and method.
type targetFlags struct {
	kind       string
	address    string
	deployment string
	method     string
	args       []string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "contract", "", "contract kind (ABI name), e.g. TestToken")
	cmd.Flags().StringVar(&f.address, "address", "", "contract address")
	cmd.Flags().StringVar(&f.deployment, "deployment", "", "named deployment on the active network, e.g. weth")
	cmd.Flags().StringVar(&f.method, "method", "", "method name (required)")
	cmd.Flags().StringArrayVar(&f.args, "arg", nil, "method argument, repeat in order")
	_ = cmd.MarkFlagRequired("method")
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	sendTarget   targetFlags
	callTarget   targetFlags
	sendValue    string
	sendGas      uint64
	sendGasPrice string
	sendWait     bool
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a contract transaction through the active provider",
	Long: `Build and submit a contract transaction from the active account.

The target is either a named deployment on the active network (--deployment)
or an explicit kind and address (--contract, --address). Arguments are parsed
against the method's ABI in order.`,
	Example: `  conduit send --deployment weth --method approve --arg 0xProxy --arg 1000000
  conduit send --contract TestToken --address 0x... --method transfer --arg 0x... --arg 5 --wait`,
	RunE: runSend,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Read a contract method through the active provider",
	Long:  `Call a read-only contract method and print the decoded outputs.`,
	Example: `  conduit call --deployment weth --method balanceOf --arg 0x...
  conduit call --contract BPool --address 0x... --method getSwapFee`,
	RunE: runCall,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.GroupID = "contracts"
	rootCmd.AddCommand(callCmd)
	callCmd.GroupID = "contracts"

	sendTarget.register(sendCmd)
	sendCmd.Flags().StringVar(&sendValue, "value", "", "ether to attach, e.g. 0.1")
	sendCmd.Flags().Uint64Var(&sendGas, "gas", 0, "gas limit (default: estimated)")
	sendCmd.Flags().StringVar(&sendGasPrice, "gas-price", "", "gas price in wei (default: suggested)")
	sendCmd.Flags().BoolVar(&sendWait, "wait", false, "wait for the transaction to be mined")

	callTarget.register(callCmd)
}

// SendResult is the printable outcome of send.
type SendResult struct {
	TxHash  string `json:"tx_hash"`
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"contract"`
	Method  string `json:"method"`
	Network string `json:"network"`
	Adapter string `json:"adapter"`
	Status  string `json:"status"`

	Value    string `json:"value,omitempty"`
	GasLimit uint64 `json:"gas_limit,omitempty"`
	GasPrice string `json:"gas_price,omitempty"`
}

// RenderText implements output.TextRenderer.
func (r SendResult) RenderText(w io.Writer) error {
	fields := output.Fields{
		{Label: "Transaction", Value: r.TxHash},
		{Label: "From", Value: r.From},
		{Label: "To", Value: r.To + " (" + r.Kind + ")"},
		{Label: "Method", Value: r.Method},
		{Label: "Network", Value: r.Network},
		{Label: "Adapter", Value: r.Adapter},
		{Label: "Status", Value: r.Status},
	}
	if r.Value != "" {
		fields = append(fields, output.Field{Label: "Value", Value: r.Value})
	}
	if r.GasLimit > 0 {
		fields = append(fields, output.Field{Label: "Gas limit", Value: strconv.FormatUint(r.GasLimit, 10)})
	}
	if r.GasPrice != "" {
		fields = append(fields, output.Field{Label: "Gas price", Value: r.GasPrice})
	}
	return fields.RenderText(w)
}

// CallResult is the printable outcome of call.
type CallResult struct {
	Kind    string   `json:"contract"`
	To      string   `json:"to"`
	Method  string   `json:"method"`
	Outputs []string `json:"outputs"`
}

// RenderText implements output.TextRenderer.
func (r CallResult) RenderText(w io.Writer) error {
	for _, v := range r.Outputs {
		out(w, "%s\n", v)
	}
	return nil
}

func runSend(cmd *cobra.Command, _ []string) error {
	cc := commandContextFn(cmd)

	overrides, err := parseOverrides(sendValue, sendGas, sendGasPrice)
	if err != nil {
		return err
	}

	ctx, cancel := contextWithTimeout(cmd, defaultInitTimeout)
	defer cancel()

	svc, err := cc.Services(ctx, cc, SignerPrompt)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	st, err := connect(ctx, svc)
	if err != nil {
		return err
	}

	kind, address, method, args, err := resolveTarget(svc, st, &sendTarget)
	if err != nil {
		return err
	}

	res := svc.Dispatcher.Dispatch(ctx, dispatch.Request{
		Kind:      kind,
		Address:   address,
		Method:    method.Name,
		Args:      args,
		Overrides: overrides,
	})
	if !res.Submitted() {
		return res.Err
	}

	result := SendResult{
		TxHash:  res.TxHash.Hex(),
		To:      address.Hex(),
		Kind:    kind,
		Method:  method.Name,
		Network: chain.NetworkName(*st.ActiveNetworkID),
		Adapter: string(st.AdapterKind()),
		Status:  "pending",
	}
	if st.Account != nil {
		result.From = st.Account.Hex()
	}
	if overrides != nil {
		if overrides.Value != nil {
			result.Value = chain.FormatEther(overrides.Value) + " ETH"
		}
		result.GasLimit = overrides.GasLimit
		if overrides.GasPrice != nil {
			result.GasPrice = eth.FormatGasPrice(overrides.GasPrice)
		}
	}

	if sendWait {
		cc.Notifier.Infof("submitted %s, waiting for it to be mined", result.TxHash)
		ok, err := waitMined(cmd, svc, res.TxHash, cc.Config.Pending.PollInterval)
		if err != nil {
			return err
		}
		result.Status = "succeeded"
		if !ok {
			result.Status = "reverted"
		} else {
			cc.Notifier.Successf("transaction %s mined", result.TxHash)
		}
	}

	if err := cc.Formatter.Print(result); err != nil {
		return err
	}
	if result.Status == "reverted" {
		return cerr.WithDetails(cerr.ErrSubmissionFailed, map[string]string{"tx": result.TxHash, "status": "reverted"})
	}
	return nil
}

func runCall(cmd *cobra.Command, _ []string) error {
	cc := commandContextFn(cmd)

	ctx, cancel := contextWithTimeout(cmd, defaultInitTimeout)
	defer cancel()

	svc, err := cc.Services(ctx, cc, SignerIfUnlocked)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	st, err := connect(ctx, svc)
	if err != nil {
		return err
	}

	kind, address, method, args, err := resolveTarget(svc, st, &callTarget)
	if err != nil {
		return err
	}

	values, err := svc.Dispatcher.Call(ctx, kind, address, method.Name, args...)
	if err != nil {
		return err
	}

	result := CallResult{Kind: kind, To: address.Hex(), Method: method.Name, Outputs: make([]string, len(values))}
	for i, v := range values {
		result.Outputs[i] = contract.FormatValue(v)
	}
	return cc.Formatter.Print(result)
}

// connect initializes the supervisor and requires an active adapter.
func connect(ctx context.Context, svc *Services) (supervisor.Status, error) {
	st := svc.Supervisor.Initialize(ctx)
	if !st.Active {
		if st.LastError != nil {
			return st, st.LastError
		}
		return st, cerr.ErrFallbackConnectFailed
	}
	return st, nil
}

// resolveTarget turns the target flags into a contract, method and parsed
// arguments. A deployment is looked up on the active network.
func resolveTarget(svc *Services, st supervisor.Status, f *targetFlags) (string, common.Address, abi.Method, []any, error) {
	var (
		kind    = f.kind
		address common.Address
	)

	switch {
	case f.deployment != "":
		if st.ActiveNetworkID == nil {
			return "", address, abi.Method{}, nil, cerr.ErrNoNetwork
		}
		d, err := svc.Book.Lookup(*st.ActiveNetworkID, f.deployment)
		if err != nil {
			return "", address, abi.Method{}, nil, err
		}
		address = d.Address
		if kind == "" {
			kind = d.Kind
		}

	case f.address != "":
		if kind == "" {
			return "", address, abi.Method{}, nil, cerr.WithSuggestion(
				cerr.WithDetails(cerr.ErrInvalidInput, map[string]string{"flag": "--contract"}),
				"pass --contract with the ABI name when using --address")
		}
		parsed, err := eth.ParseAddress(f.address)
		if err != nil {
			return "", address, abi.Method{}, nil, err
		}
		address = parsed

	default:
		return "", address, abi.Method{}, nil, cerr.WithSuggestion(
			cerr.WithDetails(cerr.ErrInvalidInput, map[string]string{"flag": "--deployment or --address"}),
			"name a deployment or pass --contract and --address")
	}

	method, err := svc.Registry.Method(kind, f.method)
	if err != nil {
		return "", address, abi.Method{}, nil, err
	}
	args, err := contract.ParseArgs(method, f.args)
	if err != nil {
		return "", address, abi.Method{}, nil, err
	}
	return kind, address, method, args, nil
}

// parseOverrides builds transaction overrides from the send flags.
// It returns nil when no flag was set.
func parseOverrides(value string, gas uint64, gasPrice string) (*contract.Overrides, error) {
	if value == "" && gas == 0 && gasPrice == "" {
		return nil, nil //nolint:nilnil // No overrides requested
	}

	o := &contract.Overrides{GasLimit: gas}
	if value != "" {
		wei, err := chain.ParseEther(value)
		if err != nil {
			return nil, err
		}
		o.Value = wei
	}
	if gasPrice != "" {
		price, ok := new(big.Int).SetString(gasPrice, 10)
		if !ok || price.Sign() < 0 {
			return nil, cerr.WithDetails(cerr.ErrInvalidAmount, map[string]string{"gas_price": gasPrice})
		}
		o.GasPrice = price
	}
	return o, nil
}

// waitMined blocks until hash leaves the pending set or the wait times out.
func waitMined(cmd *cobra.Command, svc *Services, hash common.Hash, interval time.Duration) (bool, error) {
	ctx, cancel := contextWithTimeout(cmd, defaultWaitTimeout)
	defer cancel()

	ok, err := svc.Dispatcher.Wait(ctx, hash, interval)
	if err != nil && ctx.Err() != nil {
		return false, cerr.WithDetails(cerr.ErrNetworkError, map[string]string{
			"tx":      hash.Hex(),
			"timeout": strconv.Itoa(int(defaultWaitTimeout.Seconds())) + "s",
		})
	}
	return ok, err
}
