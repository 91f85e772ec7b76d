package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/conduit/internal/chain"
	"github.com/mrz1836/conduit/internal/output"
	cerr "github.com/mrz1836/conduit/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var contractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "List known contract ABIs and deployments",
	Long: `List the contract kinds conduit can encode for and the named deployments
on a network. No provider connection is made.`,
	Example: `  conduit contracts
  conduit contracts --network betanet -o json`,
	RunE: runContracts,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var contractsNetwork string

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(contractsCmd)
	contractsCmd.GroupID = "contracts"
	contractsCmd.Flags().StringVar(&contractsNetwork, "network", "", "network name or id (default: target network)")
}

// ContractsView lists ABIs and deployments.
type ContractsView struct {
	Network     NetworkView   `json:"network"`
	Kinds       []string      `json:"kinds"`
	Deployments *output.Table `json:"deployments"`
}

// RenderText implements output.TextRenderer.
func (v ContractsView) RenderText(w io.Writer) error {
	out(w, "Contract kinds:\n")
	for _, k := range v.Kinds {
		out(w, "  %s\n", k)
	}
	outln(w)

	if v.Deployments.Len() == 0 {
		out(w, "No deployments on %s.\n", v.Network.Name)
		return nil
	}
	out(w, "Deployments on %s:\n", networkLabel(v.Network.ID))
	return v.Deployments.RenderText(w)
}

func runContracts(cmd *cobra.Command, _ []string) error {
	cc := commandContextFn(cmd)

	networkID := cc.Config.Network.TargetChainID
	if contractsNetwork != "" {
		id, ok := chain.ParseNetwork(contractsNetwork)
		if !ok {
			return cerr.WithSuggestion(
				cerr.WithDetails(cerr.ErrInvalidInput, map[string]string{"network": contractsNetwork}),
				"use a numeric id or one of: "+strings.Join(networkNames(), ", "))
		}
		networkID = id
	}

	registry, book, err := loadContracts(cc)
	if err != nil {
		return err
	}

	table := output.NewTable("Name", "Kind", "Address")
	for _, d := range book.List(networkID) {
		table.AddRow(d.Name, d.Kind, d.Address.Hex())
	}

	return cc.Formatter.Print(ContractsView{
		Network:     networkView(networkID),
		Kinds:       registry.Kinds(),
		Deployments: table,
	})
}
