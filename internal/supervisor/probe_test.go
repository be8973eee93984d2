// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPProber_AnyStatusIsReady(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusNotFound, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			w.WriteHeader(code)
			w.Write([]byte("not parsed"))
		}))

		p := NewHTTPProber(srv.URL+"/", time.Second)
		assert.NoError(t, p.Probe(context.Background()), "status %d", code)
		srv.Close()
	}
}

func TestHTTPProber_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewHTTPProber(url, time.Second)
	assert.Error(t, p.Probe(context.Background()))
}

func TestHTTPProber_RequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	p := NewHTTPProber(srv.URL, 50*time.Millisecond)
	assert.Error(t, p.Probe(context.Background()))
}

func TestHTTPProber_BadURL(t *testing.T) {
	p := &HTTPProber{URL: "://bad"}
	assert.Error(t, p.Probe(context.Background()))
}
