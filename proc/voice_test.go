package proc

import (
	"context"
	"sync"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
)

func newTestVoiceSession(guildID snowflake.ID) *VoiceSession {
	ctx, cancel := context.WithCancel(context.Background())
	sess := &VoiceSession{
		GuildID:    guildID,
		cancelCtx:  ctx,
		cancelFunc: cancel,
		resolveSem: make(chan struct{}, 3),
	}
	sess.queueCond = sync.NewCond(&sess.queueMu)
	sess.joinedCond = sync.NewCond(&sess.joinedMu)
	return sess
}

func TestDisconnectedDropsSession(t *testing.T) {
	guildID := snowflake.ID(42)
	vm := GetVoiceManager()

	sess := newTestVoiceSession(guildID)
	vm.mu.Lock()
	vm.sessions[guildID] = sess
	vm.mu.Unlock()

	vm.Disconnected(guildID)

	assert.Nil(t, vm.GetSession(guildID), "the session must be removed after a gateway disconnect")

	select {
	case <-sess.cancelCtx.Done():
	default:
		t.Fatal("the session context must be cancelled so workers stop")
	}
}

func TestDisconnectedWithoutSessionIsNoop(t *testing.T) {
	vm := GetVoiceManager()
	vm.Disconnected(snowflake.ID(99999))
	assert.Nil(t, vm.GetSession(snowflake.ID(99999)))
}
