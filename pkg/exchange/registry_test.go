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
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Registry_RoutesByFinstID(t *testing.T) {
	g := NewRegistry()

	_, err := g.TransmitChunk(context.Background(), &TransmitChunkParams{FinstID: "a", SenderID: 0, Sequence: 0})
	require.NoError(t, err)
	_, err = g.TransmitChunk(context.Background(), &TransmitChunkParams{FinstID: "b", SenderID: 0, Sequence: 0})
	require.NoError(t, err)

	require.True(t, g.Receiver("a") != g.Receiver("b"))

	// Each fragment instance's sequence numbering is independent.
	_, err = g.TransmitChunk(context.Background(), &TransmitChunkParams{FinstID: "a", SenderID: 0, Sequence: 1})
	require.NoError(t, err)
	_, err = g.TransmitChunk(context.Background(), &TransmitChunkParams{FinstID: "b", SenderID: 0, Sequence: 1})
	require.NoError(t, err)

	g.Forget("a")
	// Forgetting resets finst "a"'s sequence expectations: a fresh
	// Receiver expects to see sequence 0 again, not 2.
	_, err = g.TransmitChunk(context.Background(), &TransmitChunkParams{FinstID: "a", SenderID: 0, Sequence: 0})
	require.NoError(t, err)
}
