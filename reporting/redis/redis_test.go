package redis

import (
	"encoding/json"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/pithecene-io/rpbridge/reporting"
	"github.com/pithecene-io/rpbridge/types"
)

// asyncReceive reads n messages from the subscriber in a goroutine. Must be
// called BEFORE publishing to avoid deadlocking miniredis's synchronous
// pub/sub delivery.
func asyncReceive(sub *miniredis.Subscriber, n int) <-chan []miniredis.PubsubMessage {
	ch := make(chan []miniredis.PubsubMessage, 1)
	go func() {
		msgs := make([]miniredis.PubsubMessage, 0, n)
		for range n {
			msgs = append(msgs, <-sub.Messages())
		}
		ch <- msgs
	}()
	return ch
}

func waitMessages(t *testing.T, ch <-chan []miniredis.PubsubMessage) []Message {
	t.Helper()
	select {
	case raw := <-ch:
		out := make([]Message, len(raw))
		for i, m := range raw {
			if err := json.Unmarshal([]byte(m.Message), &out[i]); err != nil {
				t.Fatalf("unmarshal message %d: %v", i, err)
			}
		}
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pub/sub messages")
		return nil // unreachable
	}
}

func newTestClient(t *testing.T, mr *miniredis.Miniredis) *Client {
	t.Helper()
	c, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := New(Config{URL: "http://not-redis"}); err == nil {
		t.Error("expected error for invalid URL scheme")
	}
}

func TestNew_Defaults(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTestClient(t, mr)

	if c.config.Channel != DefaultChannel {
		t.Errorf("Channel = %q, want %q", c.config.Channel, DefaultChannel)
	}
	if c.config.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.config.Timeout, DefaultTimeout)
	}
	// go-redis normalizes -1 to 0 when building the client.
	if got := c.client.Options().MaxRetries; got != 0 {
		t.Errorf("MaxRetries = %d, want 0 (retries disabled)", got)
	}
}

// A publish that hits a broken connection fails once; retrying is left to
// the bridge's own error handling.
func TestClient_PublishNotRetried(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ln.Close() }()

	var accepted atomic.Int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			_ = conn.Close()
		}
	}()

	c, err := New(Config{URL: "redis://" + ln.Addr().String(), Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = c.Close() }()

	if _, err := c.StartLaunch(t.Context(), &reporting.StartLaunchRequest{Name: "nightly"}); err == nil {
		t.Fatal("expected error from a connection that closes immediately")
	}
	if got := accepted.Load(); got != 1 {
		t.Errorf("connections = %d, want 1 (no retries)", got)
	}
}

func TestClient_PublishesHierarchy(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTestClient(t, mr)
	ctx := t.Context()

	sub := mr.NewSubscriber()
	sub.Subscribe(DefaultChannel)
	ch := asyncReceive(sub, 6)

	launchID, err := c.StartLaunch(ctx, &reporting.StartLaunchRequest{Name: "nightly"})
	if err != nil {
		t.Fatalf("StartLaunch: %v", err)
	}
	suiteID, err := c.StartItem(ctx, launchID, "", &reporting.StartItemRequest{Name: "S", Type: types.ItemTypeSuite})
	if err != nil {
		t.Fatalf("StartItem: %v", err)
	}
	testID, err := c.StartItem(ctx, launchID, suiteID, &reporting.StartItemRequest{Name: "T", Type: types.ItemTypeTest})
	if err != nil {
		t.Fatalf("StartItem: %v", err)
	}
	err = c.AddLog(ctx, launchID, testID, &reporting.LogRequest{
		Level:      types.LogLevelError,
		Message:    "c - boom",
		Attachment: &types.Attachment{Name: "a.txt", MimeType: "text/plain", Data: []byte("hi")},
	})
	if err != nil {
		t.Fatalf("AddLog: %v", err)
	}
	if err := c.FinishItem(ctx, launchID, testID, &reporting.FinishItemRequest{Status: types.StatusFailed}); err != nil {
		t.Fatalf("FinishItem: %v", err)
	}
	if err := c.FinishLaunch(ctx, launchID, &reporting.FinishLaunchRequest{}); err != nil {
		t.Fatalf("FinishLaunch: %v", err)
	}

	msgs := waitMessages(t, ch)
	wantTypes := []string{TypeLaunchStarted, TypeItemStarted, TypeItemStarted, TypeLogAdded, TypeItemFinished, TypeLaunchFinished}
	for i, want := range wantTypes {
		if msgs[i].Type != want {
			t.Errorf("msgs[%d].Type = %q, want %q", i, msgs[i].Type, want)
		}
		if msgs[i].LaunchID != launchID {
			t.Errorf("msgs[%d].LaunchID = %q, want %q", i, msgs[i].LaunchID, launchID)
		}
		if msgs[i].ContractVersion != types.ContractVersion {
			t.Errorf("msgs[%d].ContractVersion = %q", i, msgs[i].ContractVersion)
		}
	}

	if msgs[2].ParentID != suiteID || msgs[2].ItemID != testID {
		t.Errorf("test item parent/id = %s/%s, want %s/%s", msgs[2].ParentID, msgs[2].ItemID, suiteID, testID)
	}
	if msgs[3].Log == nil || string(msgs[3].Log.Attachment.Data) != "hi" {
		t.Errorf("log payload = %+v", msgs[3].Log)
	}
	if msgs[4].Finish.Status != types.StatusFailed {
		t.Errorf("finish status = %q, want FAILED", msgs[4].Finish.Status)
	}
	if launchID == suiteID || suiteID == testID {
		t.Error("generated IDs must be distinct")
	}
}

func TestClient_FinishItemTwice(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTestClient(t, mr)
	ctx := t.Context()

	if err := c.FinishItem(ctx, "L", "I", &reporting.FinishItemRequest{}); err != nil {
		t.Fatalf("first finish: %v", err)
	}
	err := c.FinishItem(ctx, "L", "I", &reporting.FinishItemRequest{})
	if !errors.Is(err, reporting.ErrAlreadyFinished) {
		t.Errorf("second finish err = %v, want ErrAlreadyFinished", err)
	}
}

func TestClient_CustomChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(Config{URL: "redis://" + mr.Addr(), Channel: "ci:reports"})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	sub := mr.NewSubscriber()
	sub.Subscribe("ci:reports")
	ch := asyncReceive(sub, 1)

	if _, err := c.StartLaunch(t.Context(), &reporting.StartLaunchRequest{Name: "x"}); err != nil {
		t.Fatal(err)
	}
	if msgs := waitMessages(t, ch); msgs[0].Launch.Name != "x" {
		t.Errorf("launch name = %q", msgs[0].Launch.Name)
	}
}

func TestClient_SyncAndConnectionError(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTestClient(t, mr)

	if err := c.Sync(t.Context()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	mr.Close()
	if _, err := c.StartLaunch(t.Context(), &reporting.StartLaunchRequest{Name: "x"}); err == nil {
		t.Error("expected publish error after server shutdown")
	}
	if err := c.Sync(t.Context()); err == nil {
		t.Error("expected sync error after server shutdown")
	}
}

func TestClient_PublishFailureKeepsItemOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTestClient(t, mr)

	mr.Close()
	if err := c.FinishItem(t.Context(), "L", "I", &reporting.FinishItemRequest{}); err == nil {
		t.Fatal("expected error")
	}
	if c.finished["I"] {
		t.Error("failed finish must not mark the item finished")
	}
}
