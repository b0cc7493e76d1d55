// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/flowshard/worker/pkg/exchange"
	"github.com/flowshard/worker/pkg/util"
)

func Test_Node_ServeKeepsListening(t *testing.T) {
	n := newNode(util.DefaultConfig())

	errCh := make(chan error, 1)
	go func() { errCh <- n.serve("127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	defer n.stop()

	select {
	case err := <-errCh:
		t.Fatalf("serve exited early: %v", err)
	default:
	}
}

func Test_Registry_WiredIntoGRPCServer(t *testing.T) {
	reg := exchange.NewRegistry()
	srv := grpc.NewServer()
	exchange.RegisterTransmitChunkServer(srv, reg)

	info, ok := srv.GetServiceInfo()["exchange.Exchange"]
	require.True(t, ok)
	require.Len(t, info.Methods, 1)
	require.Equal(t, "TransmitChunk", info.Methods[0].Name)
}
