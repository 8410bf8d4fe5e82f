package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/factoryd/internal/access"
	"github.com/nerrad567/factoryd/internal/item"
)

// Operation names carried in Request.Op.
const (
	OpList        = "list"
	OpGetDetail   = "get_detail"
	OpTransfer    = "transfer"
	OpCraft       = "craft"
	OpSetRedstone = "set_redstone"
	OpListFluids  = "list_fluids"
	OpPrint       = "print"
)

// DefaultTimeout bounds a request when none is configured.
const DefaultTimeout = 10 * time.Second

// Request is sent to a remote client.
type Request struct {
	ID     string          `json:"id"`
	Client string          `json:"client"`
	Op     string          `json:"op"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// Response is a remote client's reply to the Request with the same ID.
type Response struct {
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Transport delivers a request to req.Client and waits for its response.
// It returns when the response arrives or ctx ends; an undeliverable
// request wraps access.ErrNotConnected.
type Transport interface {
	Call(ctx context.Context, req Request) (Response, error)
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Argument shapes of each operation.
type (
	addrArgs struct {
		Addr string `json:"addr"`
	}
	detailArgs struct {
		Addr string `json:"addr"`
		Slot int    `json:"slot"`
	}
	craftArgs struct {
		Addr  string `json:"addr"`
		Count int    `json:"count"`
	}
	redstoneArgs struct {
		Addr  string `json:"addr"`
		Side  string `json:"side"`
		Bit   *int   `json:"bit,omitempty"`
		Level int    `json:"level"`
	}
	printArgs struct {
		Text  string `json:"text"`
		Color int    `json:"color"`
	}
)

// Remote implements access.Remote and access.Printer over a Transport.
type Remote struct {
	transport Transport
	timeout   time.Duration
	logger    Logger
}

var (
	_ access.Remote  = (*Remote)(nil)
	_ access.Printer = (*Remote)(nil)
)

// NewRemote returns a Remote whose calls each time out after timeout.
func NewRemote(t Transport, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Remote{transport: t, timeout: timeout, logger: noopLogger{}}
}

// SetLogger sets the logger for the remote.
func (r *Remote) SetLogger(logger Logger) {
	r.logger = logger
}

// List returns the slots of the inventory at addr.
func (r *Remote) List(ctx context.Context, client, addr string) ([]access.Slot, error) {
	var slots []access.Slot
	err := r.call(ctx, OpList, client, addr, addrArgs{Addr: addr}, &slots)
	return slots, err
}

// GetDetail describes the item in one slot.
func (r *Remote) GetDetail(ctx context.Context, client, addr string, slot int) (item.Detail, error) {
	var d item.Detail
	err := r.call(ctx, OpGetDetail, client, addr, detailArgs{Addr: addr, Slot: slot}, &d)
	return d, err
}

// Transfer moves items and returns how many moved.
func (r *Remote) Transfer(ctx context.Context, client string, t access.Transfer) (int, error) {
	var moved int
	err := r.call(ctx, OpTransfer, client, t.From, t, &moved)
	return moved, err
}

// Craft crafts up to count sets and returns how many were made.
func (r *Remote) Craft(ctx context.Context, client, addr string, count int) (int, error) {
	var made int
	err := r.call(ctx, OpCraft, client, addr, craftArgs{Addr: addr, Count: count}, &made)
	return made, err
}

// SetRedstone drives a redstone output.
func (r *Remote) SetRedstone(ctx context.Context, out access.RedstoneAccess, level int) error {
	args := redstoneArgs{Addr: out.Addr, Side: out.Side, Bit: out.Bit, Level: level}
	return r.call(ctx, OpSetRedstone, out.Client, out.Addr, args, nil)
}

// ListFluids returns the tanks of the fluid container at addr.
func (r *Remote) ListFluids(ctx context.Context, client, addr string) ([]access.Fluid, error) {
	var fluids []access.Fluid
	err := r.call(ctx, OpListFluids, client, addr, addrArgs{Addr: addr}, &fluids)
	return fluids, err
}

// Print shows a line of text on a client's display.
func (r *Remote) Print(ctx context.Context, client, text string, color int) error {
	return r.call(ctx, OpPrint, client, "", printArgs{Text: text, Color: color}, nil)
}

func (r *Remote) call(ctx context.Context, op, client, addr string, args, result any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return access.NewError(op, client, addr, fmt.Errorf("encoding arguments: %w", err))
	}
	req := Request{ID: uuid.NewString(), Client: client, Op: op, Args: data}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	resp, err := r.transport.Call(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, access.ErrTimeout) {
			err = fmt.Errorf("%w: %w", access.ErrTimeout, err)
		}
		r.logger.Debug("remote call failed", "op", op, "client", client, "addr", addr, "error", err)
		return access.NewError(op, client, addr, err)
	}
	r.logger.Debug("remote call", "op", op, "client", client, "addr", addr, "duration", time.Since(started))

	if !resp.OK {
		return access.NewError(op, client, addr, fmt.Errorf("%w: %s", access.ErrRejected, resp.Error))
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return access.NewError(op, client, addr, fmt.Errorf("%w: %w", ErrBadResponse, err))
	}
	return nil
}
