//
// Copyright 2024 The mongo-change-streams-tail Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package changestreams

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestValidatePipeline(t *testing.T) {
	for _, test := range []struct {
		desc     string
		pipeline interface{}
		wantErr  bool
	}{
		{desc: "nil pipeline", pipeline: nil},
		{desc: "empty driver pipeline", pipeline: mongo.Pipeline{}},
		{desc: "bson array", pipeline: bson.A{bson.M{"$match": bson.M{}}}},
		{desc: "slice of documents", pipeline: []bson.M{{"$match": bson.M{}}}},
		{desc: "map instead of sequence", pipeline: bson.M{}, wantErr: true},
		{desc: "plain map", pipeline: map[string]interface{}{}, wantErr: true},
		{desc: "scalar", pipeline: "oops", wantErr: true},
	} {
		err := validatePipeline(test.pipeline)
		if test.wantErr {
			assert.ErrorIs(t, err, ErrInvalidPipeline, test.desc)
		} else {
			assert.NoError(t, err, test.desc)
		}
	}
}

func TestStreamOptions(t *testing.T) {
	opener := &targetOpener{config: Config{}}
	opts := opener.streamOptions(nil)
	assert.Nil(t, opts.FullDocument)
	assert.Nil(t, opts.ResumeAfter)
	assert.Nil(t, opts.BatchSize)
	require.NotNil(t, opts.MaxAwaitTime)
	assert.Equal(t, defaultMaxAwaitTime, *opts.MaxAwaitTime)

	token := tokenOf(t, changeDoc(t, 1))
	opener = &targetOpener{config: Config{
		FullDocument: FullDocumentUpdateLookup,
		MaxAwaitTime: 250 * time.Millisecond,
		BatchSize:    64,
	}}
	opts = opener.streamOptions(token)
	require.NotNil(t, opts.FullDocument)
	assert.Equal(t, options.UpdateLookup, *opts.FullDocument)
	assert.Equal(t, token, opts.ResumeAfter)
	require.NotNil(t, opts.BatchSize)
	assert.Equal(t, int32(64), *opts.BatchSize)
	require.NotNil(t, opts.MaxAwaitTime)
	assert.Equal(t, 250*time.Millisecond, *opts.MaxAwaitTime)

	// Unrecognized modes are passed through for the server to reject.
	opener = &targetOpener{config: Config{FullDocument: "unknownFullDocOption"}}
	opts = opener.streamOptions(nil)
	require.NotNil(t, opts.FullDocument)
	assert.Equal(t, options.FullDocument("unknownFullDocOption"), *opts.FullDocument)
}
