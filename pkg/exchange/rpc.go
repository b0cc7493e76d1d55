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

package exchange

import (
	"context"

	"google.golang.org/grpc"
)

// TransmitChunkHandler is implemented by a receiver (spec §3's
// "Exchange Receiver"): the fragment that owns the destination
// channel's inbox.
type TransmitChunkHandler interface {
	TransmitChunk(ctx context.Context, params *TransmitChunkParams) (*TransmitChunkResult, error)
}

const serviceName = "exchange.Exchange"

// serviceDesc registers TransmitChunkHandler on a *grpc.Server. Method
// name matches spec §6's transmit_chunk RPC.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*TransmitChunkHandler)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "TransmitChunk",
			Handler:    transmitChunkHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "exchange.proto",
}

func transmitChunkHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TransmitChunkParams)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransmitChunkHandler).TransmitChunk(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/TransmitChunk",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TransmitChunkHandler).TransmitChunk(ctx, req.(*TransmitChunkParams))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterTransmitChunkServer registers handler as the server-side
// implementation of the transmit_chunk RPC.
func RegisterTransmitChunkServer(s *grpc.Server, handler TransmitChunkHandler) {
	s.RegisterService(&serviceDesc, handler)
}

// rpcClient invokes transmit_chunk against one destination worker,
// selecting the chunkwire codec via content-subtype negotiation
// rather than grpc.ForceCodec.
type rpcClient struct {
	conn *grpc.ClientConn
}

func newRPCClient(conn *grpc.ClientConn) *rpcClient {
	return &rpcClient{conn: conn}
}

func (c *rpcClient) TransmitChunk(ctx context.Context, in *TransmitChunkParams) (*TransmitChunkResult, error) {
	out := new(TransmitChunkResult)
	err := c.conn.Invoke(ctx, "/"+serviceName+"/TransmitChunk", in, out, grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}
