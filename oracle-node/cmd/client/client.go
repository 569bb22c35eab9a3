// Package client implements the direct invocation client sub-commands.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	encointer "github.com/encointer/personhood-oracle/encointer/api"
	"github.com/encointer/personhood-oracle/oracle/api"
	cmdCommon "github.com/encointer/personhood-oracle/oracle-node/cmd/common"
	directClient "github.com/encointer/personhood-oracle/worker/direct/client"
)

const (
	// CfgEndpoint configures the direct invocation endpoint.
	CfgEndpoint = "client.endpoint"
	// CfgTimeout configures the request timeout.
	CfgTimeout = "client.timeout"

	cfgCommunity  = "community"
	cfgCycle      = "cycle"
	cfgAccount    = "account"
	cfgWindowSize = "window_size"
	cfgSubject    = "subject"
	cfgRelay      = "relay"
	cfgIssuerKey  = "issuer_key"
)

var (
	clientFlags     = flag.NewFlagSet("", flag.ContinueOnError)
	reputationFlags = flag.NewFlagSet("", flag.ContinueOnError)
	credentialFlags = flag.NewFlagSet("", flag.ContinueOnError)

	clientCmd = &cobra.Command{
		Use:   "client",
		Short: "personhood oracle client",
	}

	fetchReputationCmd = &cobra.Command{
		Use:   "fetch-reputation",
		Short: "fetch the verified reputation window of an account",
		Run:   doFetchReputation,
	}

	issueCredentialCmd = &cobra.Command{
		Use:   "issue-credential",
		Short: "issue a personhood credential to a subject key",
		Run:   doIssueCredential,
	}

	rpcMethodsCmd = &cobra.Command{
		Use:   "rpc-methods",
		Short: "list the supported methods",
		Run:   doRPCMethods,
	}

	logger = cmdCommon.Logger()
)

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}
	logger.Error(msg,
		"err", err,
	)
	os.Exit(1)
}

func connect() (context.Context, context.CancelFunc, *directClient.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration(CfgTimeout))
	c, err := directClient.Dial(ctx, viper.GetString(CfgEndpoint))
	if err != nil {
		cancel()
		exitOnErr("failed to connect to oracle", err)
	}
	return ctx, cancel, c
}

// reputationRequest builds the request from flags. Without an explicit
// cycle the verified on-chain current cycle is used.
func reputationRequest(ctx context.Context, c *directClient.Client) *api.FetchReputationRequest {
	var rq api.FetchReputationRequest
	err := rq.Community.UnmarshalText([]byte(viper.GetString(cfgCommunity)))
	exitOnErr("malformed community identifier", err)
	err = rq.Account.UnmarshalText([]byte(viper.GetString(cfgAccount)))
	exitOnErr("malformed account", err)
	rq.WindowSize = viper.GetUint32(cfgWindowSize)

	switch cycle := viper.GetUint32(cfgCycle); cycle {
	case 0:
		current, err := c.CurrentCycle(ctx)
		exitOnErr("failed to query current cycle", err)
		rq.Cycle = current
	default:
		rq.Cycle = encointer.CeremonyIndex(cycle)
	}
	return &rq
}

func doFetchReputation(cmd *cobra.Command, args []string) {
	ctx, cancel, c := connect()
	defer cancel()
	defer c.Close()

	rq := reputationRequest(ctx, c)
	window, err := c.FetchReputation(ctx, rq)
	exitOnErr("failed to fetch reputation", err)

	fmt.Printf("cycle: %d\n", rq.Cycle)
	for i, rep := range window {
		fmt.Printf("  %d: %s\n", rq.Cycle-encointer.CeremonyIndex(i+1), rep)
	}
	fmt.Printf("verified: %d of %d\n", window.VerifiedCount(), len(window))
}

func doIssueCredential(cmd *cobra.Command, args []string) {
	ctx, cancel, c := connect()
	defer cancel()
	defer c.Close()

	rq := &api.IssueCredentialRequest{
		FetchReputationRequest: *reputationRequest(ctx, c),
		SubjectKey:             viper.GetString(cfgSubject),
		RelayAddress:           viper.GetString(cfgRelay),
		IssuerKey:              viper.GetString(cfgIssuerKey),
	}
	result, err := c.IssueCredential(ctx, rq)
	exitOnErr("failed to issue credential", err)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	exitOnErr("failed to format result", enc.Encode(result))
}

func doRPCMethods(cmd *cobra.Command, args []string) {
	ctx, cancel, c := connect()
	defer cancel()
	defer c.Close()

	methods, err := c.Methods(ctx)
	exitOnErr("failed to list methods", err)
	for _, m := range methods {
		fmt.Println(m)
	}
}

// Register registers the client sub-command and all of its children.
func Register(parentCmd *cobra.Command) {
	clientFlags.String(CfgEndpoint, "ws://127.0.0.1:2000/ws", "direct invocation endpoint (ws, wss, http or https)")
	clientFlags.Duration(CfgTimeout, 60*time.Second, "request timeout")
	_ = viper.BindPFlags(clientFlags)

	reputationFlags.String(cfgCommunity, "", "community identifier (geohash followed by the base58 digest)")
	reputationFlags.Uint32(cfgCycle, 0, "cycle preceding the window, zero selects the on-chain current cycle")
	reputationFlags.String(cfgAccount, "", "account (SS58 or hex)")
	reputationFlags.Uint32(cfgWindowSize, 5, "number of cycles in the window")
	_ = viper.BindPFlags(reputationFlags)

	credentialFlags.String(cfgSubject, "", "subject key (npub or hex)")
	credentialFlags.String(cfgRelay, "", "relay websocket address")
	credentialFlags.String(cfgIssuerKey, "", "issuer key name, empty selects the default key")
	_ = viper.BindPFlags(credentialFlags)

	clientCmd.PersistentFlags().AddFlagSet(clientFlags)
	fetchReputationCmd.Flags().AddFlagSet(reputationFlags)
	issueCredentialCmd.Flags().AddFlagSet(reputationFlags)
	issueCredentialCmd.Flags().AddFlagSet(credentialFlags)

	for _, v := range []*cobra.Command{
		fetchReputationCmd,
		issueCredentialCmd,
		rpcMethodsCmd,
	} {
		clientCmd.AddCommand(v)
	}
	parentCmd.AddCommand(clientCmd)
}
