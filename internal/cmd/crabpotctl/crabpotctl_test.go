package crabpotctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	crabpotv1 "github.com/louisbranch/crabpot/api/crabpot/v1"
	crabpotservice "github.com/louisbranch/crabpot/internal/services/crabpot/api/grpc/crabpot"
	server "github.com/louisbranch/crabpot/internal/services/crabpot/app"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type fakeClient struct {
	crabpotv1.CrabPotServiceClient

	playReq   *crabpotv1.PlayRequest
	blockReq  *crabpotv1.BlockRequest
	listReq   *crabpotv1.ListPlaysRequest
	fundReq   *crabpotv1.FundRequest
	fundToken []string
	playErr   error
	events    []*crabpotv1.Event
}

func (c *fakeClient) Play(_ context.Context, in *crabpotv1.PlayRequest, _ ...grpc.CallOption) (*crabpotv1.PlayResponse, error) {
	c.playReq = in
	if c.playErr != nil {
		return nil, c.playErr
	}
	return &crabpotv1.PlayResponse{Play: &crabpotv1.Play{
		Sequence: 4,
		Identity: in.Identity,
		Message:  in.Message,
		Outcome:  "WON",
		Winner:   true,
		Payout:   10,
	}}, nil
}

func (c *fakeClient) Block(_ context.Context, in *crabpotv1.BlockRequest, _ ...grpc.CallOption) (*crabpotv1.BlockResponse, error) {
	c.blockReq = in
	return &crabpotv1.BlockResponse{Block: &crabpotv1.Block{Sequence: 1, Blocker: in.Identity, Blocked: in.Target}}, nil
}

func (c *fakeClient) ListPlays(_ context.Context, in *crabpotv1.ListPlaysRequest, _ ...grpc.CallOption) (*crabpotv1.ListPlaysResponse, error) {
	c.listReq = in
	return &crabpotv1.ListPlaysResponse{
		Plays: []*crabpotv1.Play{
			{Sequence: 2, Identity: "0xb", Outcome: "LOST", Message: "two"},
			{Sequence: 1, Identity: "0xa", Outcome: "WON", Payout: 10, Message: "one"},
		},
		NextPageToken: "next",
	}, nil
}

func (c *fakeClient) GetBalance(context.Context, *crabpotv1.GetBalanceRequest, ...grpc.CallOption) (*crabpotv1.GetBalanceResponse, error) {
	return &crabpotv1.GetBalanceResponse{Balance: 90, PayoutAmount: 10}, nil
}

func (c *fakeClient) Fund(ctx context.Context, in *crabpotv1.FundRequest, _ ...grpc.CallOption) (*crabpotv1.FundResponse, error) {
	c.fundReq = in
	md, _ := metadata.FromOutgoingContext(ctx)
	c.fundToken = md.Get(crabpotservice.OperatorTokenHeader)
	return &crabpotv1.FundResponse{Balance: 100 + in.Amount, TransferSequence: 3}, nil
}

func (c *fakeClient) WatchEvents(context.Context, *crabpotv1.WatchEventsRequest, ...grpc.CallOption) (grpc.ServerStreamingClient[crabpotv1.Event], error) {
	return &fakeStream{events: c.events}, nil
}

type fakeStream struct {
	grpc.ClientStream
	events []*crabpotv1.Event
}

func (s *fakeStream) Recv() (*crabpotv1.Event, error) {
	if len(s.events) == 0 {
		return nil, io.EOF
	}
	event := s.events[0]
	s.events = s.events[1:]
	return event, nil
}

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("crabpotctl", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"balance"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "localhost:8095" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.Command != "balance" || len(cfg.Args) != 0 {
		t.Fatalf("command = %q args = %v", cfg.Command, cfg.Args)
	}
	if cfg.Timeout <= 0 {
		t.Fatalf("expected positive default timeout, got %v", cfg.Timeout)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("CRABPOT_ADDR", "crabpot:9000")
	t.Setenv("CRABPOT_OPERATOR_TOKEN", "from-env")

	fs := flag.NewFlagSet("crabpotctl", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-json", "-timeout", "3s", "Play", "0xabc", "hello", "world"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "crabpot:9000" || cfg.OperatorToken != "from-env" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if !cfg.JSONOutput || cfg.Timeout != 3*time.Second {
		t.Fatalf("flag overrides not applied: %+v", cfg)
	}
	if cfg.Command != "play" || strings.Join(cfg.Args, ",") != "0xabc,hello,world" {
		t.Fatalf("command = %q args = %v", cfg.Command, cfg.Args)
	}
}

func TestParseConfigRequiresCommand(t *testing.T) {
	fs := flag.NewFlagSet("crabpotctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := ParseConfig(fs, nil); err == nil {
		t.Fatal("expected error without command")
	}
}

func TestExecutePlayJoinsMessage(t *testing.T) {
	client := &fakeClient{}
	var out bytes.Buffer
	err := Execute(context.Background(), client, Config{Command: "play", Args: []string{"0xabc", "good", "luck"}}, &out)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if client.playReq.Message != "good luck" || client.playReq.Identity != "0xabc" {
		t.Fatalf("play request = %+v", client.playReq)
	}
	if !strings.Contains(out.String(), "#4") || !strings.Contains(out.String(), `"good luck"`) {
		t.Fatalf("output = %q", out.String())
	}
}

func TestExecutePlayError(t *testing.T) {
	client := &fakeClient{playErr: status.Error(codes.PermissionDenied, "blocked")}
	err := Execute(context.Background(), client, Config{Command: "play", Args: []string{"0xabc", "hi"}}, io.Discard)
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.PermissionDenied)
	}
}

func TestExecuteArgumentErrors(t *testing.T) {
	cases := []Config{
		{Command: "play", Args: []string{"0xabc"}},
		{Command: "block", Args: []string{"0xabc"}},
		{Command: "status"},
		{Command: "get", Args: []string{"nope"}},
		{Command: "fund", Args: []string{"-5"}},
		{Command: "shout"},
	}
	for _, cfg := range cases {
		if err := Execute(context.Background(), &fakeClient{}, cfg, io.Discard); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}

func TestExecuteListForwardsQuery(t *testing.T) {
	client := &fakeClient{}
	var out bytes.Buffer
	cfg := Config{Command: "list", PageSize: 2, OrderBy: "sequence asc", Filter: `outcome = "WON"`, PageToken: "tok"}
	if err := Execute(context.Background(), client, cfg, &out); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if client.listReq.PageSize != 2 || client.listReq.OrderBy != "sequence asc" || client.listReq.PageToken != "tok" || client.listReq.Filter != `outcome = "WON"` {
		t.Fatalf("list request = %+v", client.listReq)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "#2 ") || lines[2] != "next page: next" {
		t.Fatalf("output lines = %q", lines)
	}
}

func TestExecuteFundAttachesOperatorToken(t *testing.T) {
	client := &fakeClient{}
	var out bytes.Buffer
	cfg := Config{Command: "fund", Args: []string{"25", "0xabc"}, OperatorToken: "secret", JSONOutput: true}
	if err := Execute(context.Background(), client, cfg, &out); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if client.fundReq.Amount != 25 || client.fundReq.Identity != "0xabc" {
		t.Fatalf("fund request = %+v", client.fundReq)
	}
	if len(client.fundToken) != 1 || client.fundToken[0] != "secret" {
		t.Fatalf("fund token = %v", client.fundToken)
	}
	var resp crabpotv1.FundResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if resp.Balance != 125 {
		t.Fatalf("balance = %d, want 125", resp.Balance)
	}
}

func TestExecuteWatchPrintsUntilEOF(t *testing.T) {
	client := &fakeClient{events: []*crabpotv1.Event{
		{Kind: crabpotv1.EventKindPlay, Play: &crabpotv1.Play{Sequence: 0, Identity: "0xa", Outcome: "LOST", Message: "hi"}},
		{Kind: crabpotv1.EventKindBlock, Block: &crabpotv1.Block{Sequence: 0, Blocker: "0xa", Blocked: "0xb"}},
	}}
	var out bytes.Buffer
	if err := Execute(context.Background(), client, Config{Command: "watch"}, &out); err != nil {
		t.Fatalf("execute: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "#0 ") || !strings.HasSuffix(lines[1], "0xa blocked 0xb") {
		t.Fatalf("output lines = %q", lines)
	}
}

func TestExecuteNilClient(t *testing.T) {
	if err := Execute(context.Background(), nil, Config{Command: "balance"}, io.Discard); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func TestRunAgainstServer(t *testing.T) {
	t.Setenv("CRABPOT_DB_PATH", filepath.Join(t.TempDir(), "crabpot.db"))
	t.Setenv("CRABPOT_INITIAL_FUNDS", "70")
	t.Setenv("CRABPOT_PAYOUT_AMOUNT", "7")

	srv, err := server.NewWithAddr("127.0.0.1:0")
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	runCtx, runCancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve(runCtx)
	}()
	defer func() {
		runCancel()
		if err := <-serveDone; err != nil {
			t.Fatalf("serve: %v", err)
		}
	}()

	var out bytes.Buffer
	cfg := Config{Addr: srv.Addr(), Command: "balance", Timeout: 5 * time.Second}
	if err := Run(context.Background(), cfg, &out, io.Discard); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "balance=70 gwei payout=7 gwei" {
		t.Fatalf("output = %q", got)
	}
}

func TestRunUnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := Run(ctx, Config{Addr: "127.0.0.1:1", Command: "balance"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected dial error")
	}
}
