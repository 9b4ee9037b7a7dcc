package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devoverflow-hq/chat-service/internal/models"
)

func TestJoinGroupIdempotent(t *testing.T) {
	svc, _, conn := newTestService(t)
	modID := seedUser(t, conn, "mod")
	memberID := seedUser(t, conn, "member")
	group := seedGroup(t, svc, modID, "joinable")

	for i := 0; i < 3; i++ {
		if errJoin := svc.JoinGroup(context.Background(), group.ID, memberID); errJoin != nil {
			t.Fatalf("JoinGroup attempt %d: %v", i, errJoin)
		}
	}

	var stored models.ChatGroup
	if errFind := conn.First(&stored, group.ID).Error; errFind != nil {
		t.Fatalf("reload group: %v", errFind)
	}
	members := stored.MemberIDs()
	if len(members) != 2 {
		t.Fatalf("expected 2 members after repeated joins, got %v", members)
	}
}

func TestJoinGroupMissingGroupOrUser(t *testing.T) {
	svc, _, conn := newTestService(t)
	modID := seedUser(t, conn, "mod")
	group := seedGroup(t, svc, modID, "solo")

	if err := svc.JoinGroup(context.Background(), group.ID+99, modID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing group: expected ErrNotFound, got %v", err)
	}
	if err := svc.JoinGroup(context.Background(), group.ID, modID+99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user: expected ErrNotFound, got %v", err)
	}
}

func TestJoinGroupBlockedWhileBanned(t *testing.T) {
	svc, _, conn := newTestService(t)
	modID := seedUser(t, conn, "mod")
	targetID := seedUser(t, conn, "target")
	group := seedGroup(t, svc, modID, "guarded")

	if _, errBan := svc.BanUser(context.Background(), Actor{UserID: modID, IsModerator: true}, group.ID, targetID, 0); errBan != nil {
		t.Fatalf("BanUser: %v", errBan)
	}
	if err := svc.JoinGroup(context.Background(), group.ID, targetID); !errors.Is(err, ErrBanned) {
		t.Fatalf("banned join: expected ErrBanned, got %v", err)
	}

	// An expired ban no longer blocks joining.
	expired := time.Now().UTC().Add(-time.Hour)
	if errUpdate := conn.Model(&models.ChatGroupBan{}).
		Where("chat_group_id = ? AND user_id = ?", group.ID, targetID).
		Update("expires_at", expired).Error; errUpdate != nil {
		t.Fatalf("expire ban: %v", errUpdate)
	}
	if err := svc.JoinGroup(context.Background(), group.ID, targetID); err != nil {
		t.Fatalf("join after expiry: %v", err)
	}
}

func TestLeaveGroup(t *testing.T) {
	svc, _, conn := newTestService(t)
	modID := seedUser(t, conn, "mod")
	memberID := seedUser(t, conn, "member")
	group := seedGroup(t, svc, modID, "leavable")

	if errJoin := svc.JoinGroup(context.Background(), group.ID, memberID); errJoin != nil {
		t.Fatalf("JoinGroup: %v", errJoin)
	}

	if err := svc.LeaveGroup(context.Background(), group.ID, modID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("moderator leave: expected ErrForbidden, got %v", err)
	}

	for i := 0; i < 2; i++ {
		if errLeave := svc.LeaveGroup(context.Background(), group.ID, memberID); errLeave != nil {
			t.Fatalf("LeaveGroup attempt %d: %v", i, errLeave)
		}
	}

	var stored models.ChatGroup
	if errFind := conn.First(&stored, group.ID).Error; errFind != nil {
		t.Fatalf("reload group: %v", errFind)
	}
	members := stored.MemberIDs()
	if len(members) != 1 || members[0] != modID {
		t.Fatalf("expected only moderator left, got %v", members)
	}
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	svc, _, conn := newTestService(t)
	modID := seedUser(t, conn, "mod")
	memberID := seedUser(t, conn, "member")
	group := seedGroup(t, svc, modID, "tracked")

	if errJoin := svc.JoinGroup(context.Background(), group.ID, memberID); errJoin != nil {
		t.Fatalf("JoinGroup: %v", errJoin)
	}
	if _, errSend := svc.SendMessage(context.Background(), modID, group.ID, "first"); errSend != nil {
		t.Fatalf("SendMessage: %v", errSend)
	}

	// Without a marker every message counts.
	unread, errUnread := svc.UnreadCount(context.Background(), group.ID, memberID)
	if errUnread != nil {
		t.Fatalf("UnreadCount: %v", errUnread)
	}
	if unread != 1 {
		t.Fatalf("expected 1 unread before mark, got %d", unread)
	}

	if errMark := svc.MarkRead(context.Background(), group.ID, memberID); errMark != nil {
		t.Fatalf("MarkRead: %v", errMark)
	}
	unread, errUnread = svc.UnreadCount(context.Background(), group.ID, memberID)
	if errUnread != nil {
		t.Fatalf("UnreadCount after mark: %v", errUnread)
	}
	if unread != 0 {
		t.Fatalf("expected 0 unread after mark, got %d", unread)
	}

	// Repeated marks stay a single row.
	if errMark := svc.MarkRead(context.Background(), group.ID, memberID); errMark != nil {
		t.Fatalf("repeat MarkRead: %v", errMark)
	}
	var markers int64
	if errCount := conn.Model(&models.ChatGroupRead{}).
		Where("chat_group_id = ? AND user_id = ?", group.ID, memberID).
		Count(&markers).Error; errCount != nil {
		t.Fatalf("count markers: %v", errCount)
	}
	if markers != 1 {
		t.Fatalf("expected one read marker row, got %d", markers)
	}
}

func TestMarkReadMissingGroup(t *testing.T) {
	svc, _, conn := newTestService(t)
	userID := seedUser(t, conn, "user")

	if err := svc.MarkRead(context.Background(), 42, userID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
