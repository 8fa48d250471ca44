package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/aretw0/reqtrace/pkg/match"
	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Show which tracer a request would activate",
	Long: `Builds a request from flags and evaluates every configured tracer in order.
The first matching tracer is the one that would trace the request.`,
	Example: `  reqtrace match --method GET --path /api/users --header x-trace=1 --peer 10.0.0.7`,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := load(cmd)
		if err != nil {
			return err
		}
		rc, err := requestFromFlags(cmd)
		if err != nil {
			return err
		}
		runMatch(cmd.OutOrStdout(), l, rc)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.Flags().String("method", "GET", "Request method")
	matchCmd.Flags().String("host", "", "Request host")
	matchCmd.Flags().String("path", "/", "Request path")
	matchCmd.Flags().StringArray("header", nil, "Request header as name=value (repeatable)")
	matchCmd.Flags().String("peer", "", "Peer address (ip or ip:port)")
}

func requestFromFlags(cmd *cobra.Command) (*domain.RequestContext, error) {
	method, _ := cmd.Flags().GetString("method")
	host, _ := cmd.Flags().GetString("host")
	path, _ := cmd.Flags().GetString("path")
	headers, _ := cmd.Flags().GetStringArray("header")
	peer, _ := cmd.Flags().GetString("peer")

	rc := &domain.RequestContext{
		StreamID: "cli",
		Method:   method,
		Host:     host,
		Path:     path,
		Headers:  make(domain.Headers, len(headers)),
	}
	for _, h := range headers {
		name, value, ok := strings.Cut(h, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected name=value", h)
		}
		rc.Headers[strings.ToLower(name)] = value
	}
	if peer != "" {
		p, err := domain.ParsePeer(peer)
		if err != nil {
			return nil, err
		}
		rc.Peer = p
	}
	return rc, nil
}

func runMatch(w io.Writer, l *loaded, rc *domain.RequestContext) {
	winner := ""
	for _, p := range l.profiles {
		ok := match.Evaluate(p.Spec, rc.StreamID, rc, nil)
		status := "no match"
		if ok {
			status = "match"
			if winner == "" {
				winner = p.Name
			}
		}
		fmt.Fprintf(w, "%-20s %s\n", p.Name, status)
	}
	if winner == "" {
		fmt.Fprintln(w, "request would not be traced")
		return
	}
	fmt.Fprintf(w, "request would be traced by %q\n", winner)
}
