package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

const dailyXML = `<?xml version="1.0" encoding="windows-1251"?>
<ValCurs Date="17.10.2026" name="Foreign Currency Market">
<Valute ID="R01235"><NumCode>840</NumCode><CharCode>USD</CharCode><Nominal>1</Nominal><Name>Доллар США</Name><Value>90,1000</Value></Valute>
<Valute ID="R01239"><NumCode>978</NumCode><CharCode>EUR</CharCode><Nominal>1</Nominal><Name> Евро </Name><Value>98,4000</Value></Valute>
</ValCurs>`

func serveWin1251(t *testing.T, body string) *httptest.Server {
	t.Helper()
	encoded, err := charmap.Windows1251.NewEncoder().String(body)
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "finbot/") {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/xml; charset=windows-1251")
		_, _ = w.Write([]byte(encoded))
	}))
}

func TestCBRClientFetchDecodesWindows1251(t *testing.T) {
	srv := serveWin1251(t, dailyXML)
	defer srv.Close()

	quotes, err := NewCBRClient(CBROptions{URL: srv.URL}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("quotes = %d, want 2", len(quotes))
	}
	if quotes[0] != (Quote{Name: "Доллар США", Rate: "90,1000"}) {
		t.Fatalf("first quote = %+v", quotes[0])
	}
	if quotes[1] != (Quote{Name: "Евро", Rate: "98,4000"}) {
		t.Fatalf("second quote = %+v", quotes[1])
	}
}

func TestCBRClientFetchEmptyDocument(t *testing.T) {
	srv := serveWin1251(t, `<?xml version="1.0" encoding="windows-1251"?><ValCurs Date="17.10.2026"></ValCurs>`)
	defer srv.Close()

	quotes, err := NewCBRClient(CBROptions{URL: srv.URL}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(quotes) != 0 {
		t.Fatalf("quotes = %v, want none", quotes)
	}
}

func TestCBRClientFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewCBRClient(CBROptions{URL: srv.URL}).Fetch(context.Background())
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("err = %v, want status error", err)
	}
}

func TestCBRClientFetchMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<ValCurs><Valute>"))
	}))
	defer srv.Close()

	if _, err := NewCBRClient(CBROptions{URL: srv.URL}).Fetch(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRender(t *testing.T) {
	got := Render([]Quote{{Name: "USD", Rate: "90.1"}, {Name: "EUR", Rate: "98.4"}})
	if got != "USD-90.1\nEUR-98.4\n" {
		t.Fatalf("Render = %q", got)
	}
	if Render(nil) != "" {
		t.Fatal("Render(nil) must be empty")
	}
}
