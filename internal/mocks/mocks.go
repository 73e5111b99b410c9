// Package mocks provides stand-ins for third-party services the rules
// engine calls out to during tests.
package mocks

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strconv"
)

// Hello answers GET /hello with "ok".
func Hello() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /hello", func(w http.ResponseWriter, r *http.Request) {
		writeText(w, "ok")
	})
	return mux
}

// MyValue answers GET /myValue with "bar".
func MyValue() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /myValue", func(w http.ResponseWriter, r *http.Request) {
		writeText(w, "bar")
	})
	return mux
}

// Account is a bank account record.
type Account struct {
	Name    string `json:"name"`
	Balance int    `json:"balance"`
}

// Accounts is the fixed data set the bank serves.
var Accounts = map[string]Account{
	"10011002": {Name: "Alice", Balance: 100},
	"10011003": {Name: "Bob", Balance: 200},
}

// Bank serves POST /account-details, returning the account as JSON or null,
// and POST /account-balance, returning the balance as text. Both read the
// account number from the "account" form field.
func Bank() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /account-details", func(w http.ResponseWriter, r *http.Request) {
		number, ok := accountField(w, r)
		if !ok {
			return
		}
		var body any
		if acct, found := Accounts[number]; found {
			body = acct
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("POST /account-balance", func(w http.ResponseWriter, r *http.Request) {
		number, ok := accountField(w, r)
		if !ok {
			return
		}
		acct, found := Accounts[number]
		if !found {
			http.Error(w, fmt.Sprintf("unknown account %s", number), http.StatusNotFound)
			return
		}
		writeText(w, strconv.Itoa(acct.Balance))
	})
	return mux
}

func accountField(w http.ResponseWriter, r *http.Request) (string, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return "", false
	}
	number := r.PostForm.Get("account")
	if number == "" {
		http.Error(w, "missing account", http.StatusBadRequest)
		return "", false
	}
	return number, true
}

func writeText(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, s)
}

// Registry maps mock names to handler constructors.
var Registry = map[string]func() http.Handler{
	"hello":    Hello,
	"my-value": MyValue,
	"bank":     Bank,
}

// Lookup returns a fresh handler for name.
func Lookup(name string) (http.Handler, error) {
	ctor, ok := Registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown mock service %q (available: %v)", name, Names())
	}
	return ctor(), nil
}

// Names returns the registered mock names in order.
func Names() []string {
	return slices.Sorted(maps.Keys(Registry))
}
