package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/conduit/internal/chain"
	"github.com/mrz1836/conduit/internal/metrics"
	"github.com/mrz1836/conduit/internal/output"
	"github.com/mrz1836/conduit/internal/supervisor"
	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// defaultInitTimeout bounds the first adapter selection.
const defaultInitTimeout = 60 * time.Second

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Select a provider once and show the connection status",
	Long: `Run provider selection once and print the result.

The injected wallet is used when it is reachable and on the target network;
otherwise the bridged fallback is loaded. The command exits non-zero when no
provider could be loaded.`,
	Example: `  conduit status
  CONDUIT_WALLET_RPC=http://127.0.0.1:8545 conduit status -o json`,
	RunE: runStatus,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow provider changes until interrupted",
	Long: `Select a provider and print every status change as wallets switch
network, change accounts or disconnect. Stop with Ctrl-C.`,
	Example: `  conduit watch
  conduit watch -o json | jq .state`,
	RunE: runWatch,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	watchShowLoading bool
	statusMetrics    bool
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.GroupID = "connection"
	rootCmd.AddCommand(watchCmd)
	watchCmd.GroupID = "connection"

	statusCmd.Flags().BoolVar(&statusMetrics, "metrics", false, "include RPC and failover counters")
	watchCmd.Flags().BoolVar(&watchShowLoading, "show-loading", false, "also print transient loading states")
}

// StatusView is the printable form of a supervisor status.
type StatusView struct {
	State           string              `json:"state"`
	TargetNetwork   NetworkView         `json:"target_network"`
	ActiveNetwork   *NetworkView        `json:"active_network,omitempty"`
	Account         string              `json:"account,omitempty"`
	Adapter         string              `json:"adapter,omitempty"`
	Endpoint        string              `json:"endpoint,omitempty"`
	Active          bool                `json:"active"`
	InjectedLoaded  bool                `json:"injected_loaded"`
	InjectedActive  bool                `json:"injected_active"`
	InjectedNetwork *NetworkView        `json:"injected_network,omitempty"`
	BackupLoaded    bool                `json:"backup_loaded"`
	WrongNetwork    bool                `json:"wrong_network"`
	HasPending      bool                `json:"has_pending"`
	Error           *output.ErrorDetail `json:"error,omitempty"`
	Metrics         *metrics.Snapshot   `json:"metrics,omitempty"`
}

// NetworkView names a network id.
type NetworkView struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

func networkView(id uint64) NetworkView {
	return NetworkView{ID: id, Name: chain.NetworkName(id)}
}

func optionalNetwork(id *uint64) *NetworkView {
	if id == nil {
		return nil
	}
	v := networkView(*id)
	return &v
}

// newStatusView converts st. hasPending reports whether the active account
// has transactions in flight.
func newStatusView(st supervisor.Status, hasPending bool) StatusView {
	v := StatusView{
		State:           st.State.String(),
		TargetNetwork:   networkView(st.TargetNetworkID),
		ActiveNetwork:   optionalNetwork(st.ActiveNetworkID),
		Adapter:         string(st.AdapterKind()),
		Active:          st.Active,
		InjectedLoaded:  st.InjectedLoaded,
		InjectedActive:  st.InjectedActive,
		InjectedNetwork: optionalNetwork(st.InjectedNetworkID),
		BackupLoaded:    st.BackupLoaded,
		WrongNetwork:    st.WrongNetwork(),
		HasPending:      hasPending,
	}
	if st.Account != nil {
		v.Account = st.Account.Hex()
	}
	if st.Adapter != nil {
		v.Endpoint = st.Adapter.Endpoint()
	}
	if st.LastError != nil {
		d := output.NewErrorDetail(st.LastError)
		v.Error = &d
	}
	return v
}

// RenderText implements output.TextRenderer.
func (v StatusView) RenderText(w io.Writer) error {
	none := func(s string) string {
		if s == "" {
			return "(none)"
		}
		return s
	}
	network := func(n *NetworkView) string {
		if n == nil {
			return "(none)"
		}
		return networkLabel(n.ID)
	}

	fields := output.Fields{
		{Label: "State", Value: v.State},
		{Label: "Target network", Value: network(&v.TargetNetwork)},
		{Label: "Active network", Value: network(v.ActiveNetwork)},
		{Label: "Account", Value: none(v.Account)},
		{Label: "Adapter", Value: none(v.Adapter)},
		{Label: "Endpoint", Value: none(v.Endpoint)},
		{Label: "Injected wallet", Value: injectedSummary(v)},
		{Label: "Fallback loaded", Value: strconv.FormatBool(v.BackupLoaded)},
		{Label: "Pending", Value: strconv.FormatBool(v.HasPending)},
	}
	if v.Error != nil {
		fields = append(fields, output.Field{Label: "Last error", Value: v.Error.Message})
		if v.Error.Cause != "" {
			fields = append(fields, output.Field{Label: "Cause", Value: v.Error.Cause})
		}
	}
	if v.Metrics != nil {
		fields = append(fields,
			output.Field{Label: "RPC calls", Value: strconv.FormatInt(v.Metrics.RPCCallsTotal, 10)},
			output.Field{Label: "RPC errors", Value: strconv.FormatInt(v.Metrics.RPCErrorsTotal, 10)},
			output.Field{Label: "RPC latency", Value: strconv.FormatFloat(v.Metrics.RPCLatencyAvgMs, 'f', 1, 64) + " ms avg"},
			output.Field{Label: "Reloads", Value: strconv.FormatInt(v.Metrics.ReloadsTotal, 10)},
			output.Field{Label: "Failovers", Value: strconv.FormatInt(v.Metrics.FailoversTotal, 10)},
			output.Field{Label: "Failover rate", Value: strconv.FormatFloat(v.Metrics.FailoverRate, 'f', 1, 64) + "%"},
		)
	}
	return fields.RenderText(w)
}

func injectedSummary(v StatusView) string {
	switch {
	case !v.InjectedLoaded:
		return "not detected"
	case v.InjectedActive:
		return "active"
	case v.WrongNetwork && v.InjectedNetwork != nil:
		return "on wrong network " + v.InjectedNetwork.Name
	default:
		return "loaded, inactive"
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := commandContextFn(cmd)

	ctx, cancel := contextWithTimeout(cmd, defaultInitTimeout)
	defer cancel()

	svc, err := cc.Services(ctx, cc, SignerIfUnlocked)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	st := svc.Supervisor.Initialize(ctx)
	view := newStatusView(st, hasPending(svc, st))
	if statusMetrics {
		snap := metrics.Global.Snapshot()
		view.Metrics = &snap
	}

	if err := cc.Formatter.Print(view); err != nil {
		return err
	}
	if st.State == supervisor.Failed {
		if st.LastError != nil {
			return st.LastError
		}
		return cerr.ErrFallbackConnectFailed
	}
	if st.WrongNetwork() {
		cc.Notifier.Warnf("injected wallet is on %s, switch it to %s to use it",
			chain.NetworkName(*st.InjectedNetworkID), chain.NetworkName(st.TargetNetworkID))
	}
	return nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cc := commandContextFn(cmd)

	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, stop := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := cc.Services(ctx, cc, SignerIfUnlocked)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	return watchStatus(ctx, cc, svc)
}

// watchStatus prints every published status until ctx is done.
func watchStatus(ctx context.Context, cc *CommandContext, svc *Services) error {
	updates := make(chan supervisor.Status, 16)
	unsubscribe := svc.Supervisor.Subscribe(func(st supervisor.Status) {
		select {
		case updates <- st:
		default:
			cc.Logger.Error("status printer is behind, dropping %s update", st.State)
		}
	})
	defer unsubscribe()

	initCtx, cancel := context.WithTimeout(ctx, defaultInitTimeout)
	svc.Supervisor.Initialize(initCtx)
	cancel()

	for {
		select {
		case <-ctx.Done():
			cc.Notifier.Infof("stopped watching")
			return nil
		case st := <-updates:
			if st.State == supervisor.Loading && !watchShowLoading {
				continue
			}
			if cc.Formatter.IsJSON() {
				if err := cc.Formatter.Print(newStatusView(st, hasPending(svc, st))); err != nil {
					return err
				}
				continue
			}
			out(cc.Out(), "[%s] %s\n", time.Now().Format(time.TimeOnly), statusLine(st))
		}
	}
}

// statusLine is the one-line text form used by watch.
func statusLine(st supervisor.Status) string {
	line := st.State.String()
	if st.ActiveNetworkID != nil {
		line += " network=" + chain.NetworkName(*st.ActiveNetworkID)
	}
	if kind := st.AdapterKind(); kind != "" {
		line += " adapter=" + string(kind)
	}
	if st.Account != nil {
		line += " account=" + st.Account.Hex()
	}
	if st.WrongNetwork() {
		line += " wallet-network=" + chain.NetworkName(*st.InjectedNetworkID)
	}
	if st.LastError != nil {
		line += " error=\"" + st.LastError.Error() + "\""
	}
	return line
}

// networkLabel formats a network id as "name (id)".
func networkLabel(id uint64) string {
	return chain.NetworkName(id) + " (" + strconv.FormatUint(id, 10) + ")"
}

func hasPending(svc *Services, st supervisor.Status) bool {
	return st.Account != nil && svc.Tracker != nil && svc.Tracker.HasPending(*st.Account)
}
