package home

import (
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
)

func pruneTestMessage(id snowflake.ID) discord.Message {
	return discord.Message{ID: id}
}

func TestBulkDeletableIDs(t *testing.T) {
	now := time.Now()
	fresh := snowflake.New(now.Add(-time.Hour))
	nearLimit := snowflake.New(now.Add(-13 * 24 * time.Hour))
	tooOld := snowflake.New(now.Add(-15 * 24 * time.Hour))

	messages := []discord.Message{
		pruneTestMessage(fresh),
		pruneTestMessage(nearLimit),
		pruneTestMessage(tooOld),
	}

	ids := bulkDeletableIDs(messages, now)
	assert.Equal(t, []snowflake.ID{fresh, nearLimit}, ids, "messages past the two-week window must be skipped")
}

func TestBulkDeletableIDsEmpty(t *testing.T) {
	now := time.Now()
	old := snowflake.New(now.Add(-30 * 24 * time.Hour))

	ids := bulkDeletableIDs([]discord.Message{pruneTestMessage(old)}, now)
	assert.Empty(t, ids)
}
