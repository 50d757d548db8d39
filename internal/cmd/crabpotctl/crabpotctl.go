// Package crabpotctl implements the crab pot command-line client.
package crabpotctl

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	crabpotv1 "github.com/louisbranch/crabpot/api/crabpot/v1"
	entrypoint "github.com/louisbranch/crabpot/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/crabpot/internal/platform/grpc"
	"github.com/louisbranch/crabpot/internal/platform/timeouts"
	crabpotservice "github.com/louisbranch/crabpot/internal/services/crabpot/api/grpc/crabpot"
	"google.golang.org/grpc/metadata"
)

const usage = `usage: crabpotctl [flags] <command> [args]

commands:
  play <identity> <message...>   spend a chance on a play
  block <identity> <target>      spend a chance to bar target
  status <identity>              show whether identity may still act
  get <sequence>                 show one play
  list                           list plays (see -page-size, -order-by, -filter, -page-token)
  balance                        show the vault balance
  fund <amount> [identity]       credit the vault (requires -operator-token)
  watch                          stream plays and blocks as they commit`

// Config holds crabpotctl configuration.
type Config struct {
	Addr          string        `env:"CRABPOT_ADDR" envDefault:"localhost:8095"`
	OperatorToken string        `env:"CRABPOT_OPERATOR_TOKEN"`
	Timeout       time.Duration `env:"CRABPOT_CTL_TIMEOUT"`
	JSONOutput    bool
	PageSize      int
	PageToken     string
	OrderBy       string
	Filter        string
	Command       string
	Args          []string
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.GRPCRequest
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "crab pot gRPC address (default: CRABPOT_ADDR or localhost:8095)")
	fs.StringVar(&cfg.OperatorToken, "operator-token", cfg.OperatorToken, "operator token for fund (default: CRABPOT_OPERATOR_TOKEN)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON")
	fs.IntVar(&cfg.PageSize, "page-size", 0, "list page size (0 = server default)")
	fs.StringVar(&cfg.PageToken, "page-token", "", "list page token from a previous call")
	fs.StringVar(&cfg.OrderBy, "order-by", "", `list order: "sequence desc" (default) or "sequence asc"`)
	fs.StringVar(&cfg.Filter, "filter", "", `list filter, e.g. outcome = "WON"`)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), usage)
		fs.PrintDefaults()
	}
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return Config{}, errors.New("command is required")
	}
	cfg.Command = strings.ToLower(rest[0])
	cfg.Args = rest[1:]
	return cfg, nil
}

// Run dials the crab pot server and executes the configured command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if errOut == nil {
		errOut = io.Discard
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCrabPotCtl, func(ctx context.Context) error {
		logf := log.New(errOut, "", 0).Printf
		conn, err := platformgrpc.DialWithHealth(ctx, nil, cfg.Addr, timeouts.GRPCDial, logf, platformgrpc.DefaultClientDialOptions()...)
		if err != nil {
			return fmt.Errorf("connect to %s: %w", cfg.Addr, err)
		}
		defer func() {
			if closeErr := conn.Close(); closeErr != nil {
				fmt.Fprintf(errOut, "Error: close connection: %v\n", closeErr)
			}
		}()
		return Execute(ctx, crabpotv1.NewCrabPotServiceClient(conn), cfg, out)
	})
}

// Execute runs the configured command against client.
func Execute(ctx context.Context, client crabpotv1.CrabPotServiceClient, cfg Config, out io.Writer) error {
	if client == nil {
		return errors.New("crab pot client is required")
	}
	if out == nil {
		out = io.Discard
	}
	p := printer{out: out, json: cfg.JSONOutput}

	if cfg.Command == "watch" {
		return watch(ctx, client, p)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	switch cfg.Command {
	case "play":
		if len(cfg.Args) < 2 {
			return errors.New("play requires <identity> <message>")
		}
		resp, err := client.Play(ctx, &crabpotv1.PlayRequest{
			Identity: cfg.Args[0],
			Message:  strings.Join(cfg.Args[1:], " "),
		})
		if err != nil {
			return fmt.Errorf("play: %w", err)
		}
		return p.play(resp.Play)
	case "block":
		if len(cfg.Args) != 2 {
			return errors.New("block requires <identity> <target>")
		}
		resp, err := client.Block(ctx, &crabpotv1.BlockRequest{Identity: cfg.Args[0], Target: cfg.Args[1]})
		if err != nil {
			return fmt.Errorf("block: %w", err)
		}
		return p.block(resp.Block)
	case "status":
		if len(cfg.Args) != 1 {
			return errors.New("status requires <identity>")
		}
		resp, err := client.GetStatus(ctx, &crabpotv1.GetStatusRequest{Identity: cfg.Args[0]})
		if err != nil {
			return fmt.Errorf("get status: %w", err)
		}
		if p.json {
			return p.encode(resp)
		}
		_, err = fmt.Fprintf(p.out, "%s participated=%t blocked=%t eligible=%t\n", resp.Identity, resp.Participated, resp.Blocked, resp.Eligible)
		return err
	case "get":
		if len(cfg.Args) != 1 {
			return errors.New("get requires <sequence>")
		}
		seq, err := strconv.ParseUint(cfg.Args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("parse sequence: %w", err)
		}
		resp, err := client.GetPlay(ctx, &crabpotv1.GetPlayRequest{Sequence: seq})
		if err != nil {
			return fmt.Errorf("get play: %w", err)
		}
		return p.play(resp.Play)
	case "list":
		resp, err := client.ListPlays(ctx, &crabpotv1.ListPlaysRequest{
			PageSize:  int32(cfg.PageSize),
			PageToken: cfg.PageToken,
			OrderBy:   cfg.OrderBy,
			Filter:    cfg.Filter,
		})
		if err != nil {
			return fmt.Errorf("list plays: %w", err)
		}
		if p.json {
			return p.encode(resp)
		}
		for _, record := range resp.Plays {
			if err := p.play(record); err != nil {
				return err
			}
		}
		if resp.NextPageToken != "" {
			_, err = fmt.Fprintf(p.out, "next page: %s\n", resp.NextPageToken)
		}
		return err
	case "balance":
		resp, err := client.GetBalance(ctx, &crabpotv1.GetBalanceRequest{})
		if err != nil {
			return fmt.Errorf("get balance: %w", err)
		}
		if p.json {
			return p.encode(resp)
		}
		_, err = fmt.Fprintf(p.out, "balance=%d gwei payout=%d gwei\n", resp.Balance, resp.PayoutAmount)
		return err
	case "fund":
		if len(cfg.Args) < 1 || len(cfg.Args) > 2 {
			return errors.New("fund requires <amount> [identity]")
		}
		amount, err := strconv.ParseUint(cfg.Args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("parse amount: %w", err)
		}
		req := &crabpotv1.FundRequest{Amount: amount}
		if len(cfg.Args) == 2 {
			req.Identity = cfg.Args[1]
		}
		if token := strings.TrimSpace(cfg.OperatorToken); token != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, crabpotservice.OperatorTokenHeader, token)
		}
		resp, err := client.Fund(ctx, req)
		if err != nil {
			return fmt.Errorf("fund: %w", err)
		}
		if p.json {
			return p.encode(resp)
		}
		_, err = fmt.Fprintf(p.out, "funded transfer #%d balance=%d gwei\n", resp.TransferSequence, resp.Balance)
		return err
	default:
		return fmt.Errorf("unknown command %q", cfg.Command)
	}
}

func watch(ctx context.Context, client crabpotv1.CrabPotServiceClient, p printer) error {
	stream, err := client.WatchEvents(ctx, &crabpotv1.WatchEventsRequest{})
	if err != nil {
		return fmt.Errorf("watch events: %w", err)
	}
	for {
		event, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("watch events: %w", err)
		}
		if p.json {
			if err := p.encode(event); err != nil {
				return err
			}
			continue
		}
		switch {
		case event.Play != nil:
			err = p.play(event.Play)
		case event.Block != nil:
			err = p.block(event.Block)
		}
		if err != nil {
			return err
		}
	}
}

type printer struct {
	out  io.Writer
	json bool
}

func (p printer) encode(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) play(record *crabpotv1.Play) error {
	if record == nil {
		return nil
	}
	if p.json {
		return p.encode(record)
	}
	_, err := fmt.Fprintf(p.out, "#%d %s %s %s payout=%d %q\n",
		record.Sequence, record.Timestamp.Format(time.RFC3339), record.Identity, record.Outcome, record.Payout, record.Message)
	return err
}

func (p printer) block(record *crabpotv1.Block) error {
	if record == nil {
		return nil
	}
	if p.json {
		return p.encode(record)
	}
	_, err := fmt.Fprintf(p.out, "block #%d %s %s blocked %s\n",
		record.Sequence, record.Timestamp.Format(time.RFC3339), record.Blocker, record.Blocked)
	return err
}
