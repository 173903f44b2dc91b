package gas

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOracle_GasPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fast": 60, "average": 42.7, "safeLow": 30}`))
	}))
	defer srv.Close()

	price, err := NewOracle(srv.URL, time.Second).GasPrice(context.Background())
	require.NoError(t, err)
	require.Equal(t, "42000000000", price.String())
}

func TestOracle_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusServiceUnavailable, `{}`},
		{"bad json", http.StatusOK, `not json`},
		{"missing field", http.StatusOK, `{"fast": 1}`},
		{"zero", http.StatusOK, `{"average": 0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOracle(srv.URL, time.Second).GasPrice(context.Background())
			require.Error(t, err)
		})
	}
}

func TestOracle_AsPriceFunc(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := NewValidator(nil, NewOracle(srv.URL, time.Second).GasPrice)
	require.Nil(t, v.FetchGasPrice(context.Background()))
}
