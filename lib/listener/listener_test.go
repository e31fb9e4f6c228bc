package listener

import "testing"

// TestParse checks the accepted listen-directive forms
func TestParse(t *testing.T) {
	t.Run("bare port", func(t *testing.T) {
		descs, err := Parse("9312")
		if err != nil {
			t.Fatal(err)
		}
		if len(descs) != 1 {
			t.Fatalf("got %d descriptors", len(descs))
		}
		d := descs[0]
		if d.Port != 9312 || d.Proto != ProtoSphinx || d.VIP || d.IP != 0 || d.UnixPath != "" {
			t.Errorf("unexpected descriptor: %+v", d)
		}
	})

	t.Run("bare hostname", func(t *testing.T) {
		descs, err := Parse("localhost")
		if err != nil {
			t.Fatal(err)
		}
		if len(descs) != 1 {
			t.Fatalf("got %d descriptors", len(descs))
		}
		d := descs[0]
		if d.Port != DefaultAPIPort || d.Proto != ProtoSphinx || d.IP == 0 {
			t.Errorf("unexpected descriptor: %+v", d)
		}
		if d.Addr() != "127.0.0.1:9312" {
			t.Errorf("Addr = %q", d.Addr())
		}
	})

	t.Run("address port proto", func(t *testing.T) {
		descs, err := Parse("127.0.0.1:9306:mysql41")
		if err != nil {
			t.Fatal(err)
		}
		d := descs[0]
		if d.Port != 9306 || d.Proto != ProtoMySQL41 || d.IP == 0 {
			t.Errorf("unexpected descriptor: %+v", d)
		}
		if d.Addr() != "127.0.0.1:9306" {
			t.Errorf("Addr = %q", d.Addr())
		}
	})

	t.Run("port proto", func(t *testing.T) {
		descs, err := Parse("9308:http")
		if err != nil {
			t.Fatal(err)
		}
		if descs[0].Port != 9308 || descs[0].Proto != ProtoHTTP {
			t.Errorf("unexpected descriptor: %+v", descs[0])
		}
	})

	t.Run("unix socket", func(t *testing.T) {
		descs, err := Parse("/var/run/ftsd.sock:sphinx")
		if err != nil {
			t.Fatal(err)
		}
		d := descs[0]
		if d.UnixPath != "/var/run/ftsd.sock" || d.Proto != ProtoSphinx {
			t.Errorf("unexpected descriptor: %+v", d)
		}
		if d.Addr() != "/var/run/ftsd.sock" {
			t.Errorf("Addr = %q", d.Addr())
		}
	})

	t.Run("unix socket without proto", func(t *testing.T) {
		descs, err := Parse("/tmp/api.sock")
		if err != nil {
			t.Fatal(err)
		}
		if descs[0].UnixPath != "/tmp/api.sock" {
			t.Errorf("unexpected descriptor: %+v", descs[0])
		}
	})

	t.Run("port range with vip", func(t *testing.T) {
		descs, err := Parse("0.0.0.0:9000-9003:http_vip")
		if err != nil {
			t.Fatal(err)
		}
		if len(descs) != 4 {
			t.Fatalf("range expanded to %d descriptors, want 4", len(descs))
		}
		for i, d := range descs {
			if d.Port != 9000+i {
				t.Errorf("descriptor %d has port %d", i, d.Port)
			}
			if d.Proto != ProtoHTTP || !d.VIP {
				t.Errorf("descriptor %d lost proto/vip: %+v", i, d)
			}
		}
	})
}

// TestParseErrors checks the directives that must be rejected
func TestParseErrors(t *testing.T) {
	bad := []string{
		"1.2.3.4:9000-9000",    // empty range
		"1.2.3.4:9003-9000",    // inverted range
		"99999:sphinx",         // port out of range
		"0:sphinx",             // port out of range
		"9312:smtp",            // unknown protocol
		"a:b:c:d",              // too many fields
		"1.2.3.4:port",         // unparseable port
		"/run/x.sock:telegraf", // unknown protocol on a socket
	}
	for _, spec := range bad {
		if _, err := Parse(spec); err == nil {
			t.Errorf("Parse(%q) accepted", spec)
		}
	}
}

// TestParseAllDefaults checks the fallback listeners
func TestParseAllDefaults(t *testing.T) {
	descs, err := ParseAll(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(descs) != 2 {
		t.Fatalf("got %d default listeners", len(descs))
	}
	if descs[0].Port != 9312 || descs[0].Proto != ProtoSphinx {
		t.Errorf("first default: %+v", descs[0])
	}
	if descs[1].Port != 9306 || descs[1].Proto != ProtoMySQL41 {
		t.Errorf("second default: %+v", descs[1])
	}
}
