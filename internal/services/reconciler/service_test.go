package reconciler

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pollincash/pollsync/internal/chain"
	"github.com/pollincash/pollsync/internal/services/projector"
	"github.com/pollincash/pollsync/internal/storage"
	"github.com/pollincash/pollsync/internal/storage/memory"
)

type fakeReader struct {
	counter    uint64
	counterErr error
	infoErr    map[uint64]error
}

func (f *fakeReader) PollCounter(context.Context) (uint64, error) {
	return f.counter, f.counterErr
}

func (f *fakeReader) PollInfo(_ context.Context, pollID uint64) (chain.PollInfo, error) {
	if err := f.infoErr[pollID]; err != nil {
		return chain.PollInfo{}, err
	}
	return chain.PollInfo{
		Creator:        common.HexToAddress("0xAbCd00000000000000000000000000000000EF01"),
		RewardPool:     big.NewInt(500000),
		RewardPerUser:  big.NewInt(50000),
		CompletedCount: big.NewInt(int64(pollID)),
		MaxCompletions: big.NewInt(10),
		IsActive:       pollID%2 == 1,
	}, nil
}

type fakeProber struct {
	calls int
	err   error
}

func (f *fakeProber) Ping(context.Context) error {
	f.calls++
	return f.err
}

func newService(reader ChainReader, prober storage.Prober, polls storage.PollStore) *Service {
	return New(reader, projector.New(polls, nil), prober, nil)
}

func TestReconcileSyncsAllPolls(t *testing.T) {
	store := memory.New()
	svc := newService(&fakeReader{counter: 3}, &fakeProber{}, store)

	sum, err := svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if sum.Total != 3 || sum.Synced != 3 || len(sum.Errors) != 0 {
		t.Fatalf("unexpected summary: %#v", sum)
	}

	p, err := store.GetPoll(context.Background(), "2")
	if err != nil {
		t.Fatalf("get poll 2: %v", err)
	}
	if p.Status != "closed" {
		t.Fatalf("poll 2 inactive on chain, want closed, got %q", p.Status)
	}
	if p.CompletedCount != 2 {
		t.Fatalf("completed count = %d, want 2", p.CompletedCount)
	}
	if p.TxHash != nil || p.BlockNumber != nil {
		t.Fatalf("chain-derived records carry no tx provenance: %#v", p)
	}
}

func TestReconcileZeroCounterSkipsProbe(t *testing.T) {
	prober := &fakeProber{err: errors.New("unreachable")}
	svc := newService(&fakeReader{counter: 0}, prober, memory.New())

	sum, err := svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if sum.Total != 0 || sum.Synced != 0 {
		t.Fatalf("unexpected summary: %#v", sum)
	}
	if prober.calls != 0 {
		t.Fatalf("store probed %d times for empty chain, want 0", prober.calls)
	}
}

func TestReconcileCounterFailure(t *testing.T) {
	svc := newService(&fakeReader{counterErr: errors.New("rpc timeout")}, &fakeProber{}, memory.New())

	_, err := svc.Reconcile(context.Background())
	if !errors.Is(err, ErrCounterRead) {
		t.Fatalf("want ErrCounterRead, got %v", err)
	}
}

func TestReconcileStoreUnreachable(t *testing.T) {
	prober := &fakeProber{err: storage.ErrStoreUnavailable}
	store := memory.New()
	svc := newService(&fakeReader{counter: 5}, prober, store)

	sum, err := svc.Reconcile(context.Background())
	if !errors.Is(err, storage.ErrStoreUnavailable) {
		t.Fatalf("want ErrStoreUnavailable, got %v", err)
	}
	if sum.Total != 5 || sum.Synced != 0 {
		t.Fatalf("unexpected summary: %#v", sum)
	}
	if polls, _ := store.ListPolls(context.Background()); len(polls) != 0 {
		t.Fatalf("no writes expected when the store probe fails, got %d", len(polls))
	}
}

func TestReconcilePerPollFailureContinues(t *testing.T) {
	reader := &fakeReader{
		counter: 5,
		infoErr: map[uint64]error{3: errors.New("execution reverted")},
	}
	store := memory.New()
	svc := newService(reader, &fakeProber{}, store)

	sum, err := svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if sum.Total != 5 || sum.Synced != 4 {
		t.Fatalf("unexpected summary: %#v", sum)
	}
	if len(sum.Errors) != 1 {
		t.Fatalf("want 1 error, got %v", sum.Errors)
	}
	want := fmt.Sprintf("poll %d: execution reverted", 3)
	if sum.Errors[0] != want {
		t.Fatalf("error %q, want %q", sum.Errors[0], want)
	}
	if _, err := store.GetPoll(context.Background(), "3"); !errors.Is(err, storage.ErrPollNotFound) {
		t.Fatalf("poll 3 should not exist, got %v", err)
	}
	if _, err := store.GetPoll(context.Background(), "5"); err != nil {
		t.Fatalf("poll 5 should exist: %v", err)
	}
}
