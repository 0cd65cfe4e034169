package boltdemo

import (
	"context"
	"testing"

	"github.com/davebshow/asyncbolt/internal/bolt/packstream"
	"github.com/davebshow/asyncbolt/internal/config"
)

func TestRunFunc_ReturnOne(t *testing.T) {
	res, err := RunFunc(context.Background(), "RETURN 1", packstream.NewMap())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	row := <-res.Records
	if len(row) != 1 || row[0] != int64(1) {
		t.Fatalf("unexpected row: %#v", row)
	}
}

func TestRunFunc_EchoParameter(t *testing.T) {
	params := packstream.NewMap()
	params.Set("value", "hello")
	res, err := RunFunc(context.Background(), "ECHO ignored", params)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	row := <-res.Records
	if row[0] != "hello" {
		t.Fatalf("unexpected echoed value: %#v", row)
	}
}

func TestRunFunc_UnknownStatement(t *testing.T) {
	if _, err := RunFunc(context.Background(), "DROP TABLE x", packstream.NewMap()); err == nil {
		t.Fatalf("expected syntax error for unrecognized statement")
	}
}

func TestVerifyAuthFunc_StaticToken(t *testing.T) {
	auth := VerifyAuthFunc(config.Auth{
		Mode:        config.AuthModeStaticToken,
		Principal:   "alice",
		Credentials: "secret",
	})
	good := packstream.NewMap()
	good.Set("principal", "alice")
	good.Set("credentials", "secret")
	if !auth(good) {
		t.Fatalf("expected matching credentials to be accepted")
	}

	bad := packstream.NewMap()
	bad.Set("principal", "alice")
	bad.Set("credentials", "wrong")
	if auth(bad) {
		t.Fatalf("expected mismatched credentials to be rejected")
	}
}
