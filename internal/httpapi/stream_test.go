package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propertyhub.org/internal/audit"
	"propertyhub.org/internal/auth"
)

func TestAuditStreamDeliversMatchingEntries(t *testing.T) {
	e := newTestAPI(t)
	e.globalAdmin("root@example.com")
	token := e.login("root@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.srv.URL+"/v1/audit/stream?entity_type="+auth.EntityPropertyGroup, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": stream started\n", line)

	// The account entry is filtered out; only the group entry arrives.
	e.account("someone@example.com", "")
	group, err := e.admin.CreatePropertyGroup(context.Background(), "South Estate")
	require.NoError(t, err)

	var data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	var entry audit.Entry
	require.NoError(t, json.Unmarshal([]byte(data), &entry))
	assert.Equal(t, auth.EntityPropertyGroup, entry.EntityType)
	assert.Equal(t, group.ID, entry.EntityID)
	assert.Equal(t, audit.ActionCreate, entry.Action)
}

func TestAuditStreamRequiresGlobalAdmin(t *testing.T) {
	e := newTestAPI(t)
	e.account("pm@example.com", auth.PermissionAdmin)
	token := e.login("pm@example.com")

	resp := e.do(http.MethodGet, "/v1/audit/stream", token, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
}
