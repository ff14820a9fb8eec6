package main

import "testing"

func bulkArray(parts ...string) Frame {
	items := make([]Frame, len(parts))
	for i, p := range parts {
		items[i] = NewBulkString([]byte(p))
	}
	return ArrayFrame{Valid: true, Items: items}
}

func TestRouteFrame_SimpleCommands(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want CommandName
	}{
		{"GET", []string{"GET", "foo"}, CmdGet},
		{"DEL", []string{"DEL", "foo"}, CmdDel},
		{"EXISTS", []string{"exists", "foo"}, CmdExists},
		{"INCR", []string{"INCR", "c"}, CmdIncr},
		{"DECR", []string{"DECR", "c"}, CmdDecr},
		{"FLUSHDB", []string{"FLUSHDB"}, CmdFlushdb},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := RouteFrame(bulkArray(tc.args...))
			if err != nil {
				t.Fatalf("RouteFrame error: %v", err)
			}
			if cmd.Name != tc.want {
				t.Fatalf("got command %v, want %v", cmd.Name, tc.want)
			}
		})
	}
}

func TestRouteFrame_CaseInsensitiveCommandName(t *testing.T) {
	cmd, err := RouteFrame(bulkArray("get", "foo"))
	if err != nil {
		t.Fatalf("RouteFrame error: %v", err)
	}
	if cmd.Name != CmdGet || cmd.Key != "foo" {
		t.Fatalf("got %+v, want GET foo", cmd)
	}
}

func TestRouteFrame_SetWithoutTTL(t *testing.T) {
	cmd, err := RouteFrame(bulkArray("SET", "k", "v"))
	if err != nil {
		t.Fatalf("RouteFrame error: %v", err)
	}
	if cmd.Name != CmdSet || cmd.Key != "k" || cmd.Value != "v" || cmd.HasPX {
		t.Fatalf("got %+v", cmd)
	}
}

func TestRouteFrame_SetWithPX(t *testing.T) {
	cmd, err := RouteFrame(bulkArray("SET", "k", "v", "PX", "100"))
	if err != nil {
		t.Fatalf("RouteFrame error: %v", err)
	}
	if !cmd.HasPX || cmd.PXMillis != 100 {
		t.Fatalf("got %+v, want HasPX=true PXMillis=100", cmd)
	}
}

func TestRouteFrame_SetPXCaseInsensitive(t *testing.T) {
	cmd, err := RouteFrame(bulkArray("SET", "k", "v", "px", "50"))
	if err != nil {
		t.Fatalf("RouteFrame error: %v", err)
	}
	if !cmd.HasPX || cmd.PXMillis != 50 {
		t.Fatalf("got %+v", cmd)
	}
}

func TestRouteFrame_SetUnsupportedOption(t *testing.T) {
	_, err := RouteFrame(bulkArray("SET", "k", "v", "EX", "50"))
	if err == nil {
		t.Fatalf("expected error for unsupported SET option")
	}
}

func TestRouteFrame_WrongArgCount(t *testing.T) {
	_, err := RouteFrame(bulkArray("GET"))
	perr, ok := err.(*ProtocolError)
	if !ok || perr.Kind != ErrKindInvalidArgCount {
		t.Fatalf("got %v, want InvalidArgumentCount", err)
	}
}

func TestRouteFrame_UnknownCommand(t *testing.T) {
	_, err := RouteFrame(bulkArray("NOPE", "x"))
	perr, ok := err.(*ProtocolError)
	if !ok || perr.Kind != ErrKindInvalidCommand {
		t.Fatalf("got %v, want InvalidCommand", err)
	}
}

func TestRouteFrame_ExpireParsesSeconds(t *testing.T) {
	cmd, err := RouteFrame(bulkArray("EXPIRE", "k", "30"))
	if err != nil {
		t.Fatalf("RouteFrame error: %v", err)
	}
	if cmd.Name != CmdExpire || cmd.Seconds != 30 {
		t.Fatalf("got %+v", cmd)
	}
}

func TestRouteFrame_ExpireRejectsNegativeSeconds(t *testing.T) {
	_, err := RouteFrame(bulkArray("EXPIRE", "k", "-1"))
	if err == nil {
		t.Fatalf("expected error for negative seconds")
	}
}

func TestRouteFrame_NotAnArray(t *testing.T) {
	_, err := RouteFrame(SimpleStringFrame("GET"))
	if err == nil {
		t.Fatalf("expected error when request is not an array")
	}
}

func TestRouteFrame_EmptyArray(t *testing.T) {
	_, err := RouteFrame(ArrayFrame{Valid: true, Items: nil})
	if err == nil {
		t.Fatalf("expected error for empty command array")
	}
}
