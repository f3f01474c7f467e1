package mailstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"
)

// keywordPrefix namespaces this tool's IMAP keywords so they never collide
// with flags set by other clients.
const keywordPrefix = "Mailsift-"

// IMAPStore implements Store over an IMAP connection. Labels are message
// keywords (created implicitly on first STORE); archiving moves the message
// out of INBOX into the archive mailbox.
type IMAPStore struct {
	client         *imapclient.Client
	archiveMailbox string
	labelToKeyword map[string]imap.Flag
	keywordToLabel map[imap.Flag]string
	previewLimit   int
	logger         *zap.Logger
}

// DialIMAP connects, authenticates and selects INBOX.
func DialIMAP(addr, username, password, archiveMailbox string, vocabulary []string, previewLimit int, logger *zap.Logger) (*IMAPStore, error) {
	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial IMAP server: %w", err)
	}

	if err := client.Login(username, password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	s := &IMAPStore{
		client:         client,
		archiveMailbox: archiveMailbox,
		labelToKeyword: make(map[string]imap.Flag, len(vocabulary)),
		keywordToLabel: make(map[imap.Flag]string, len(vocabulary)),
		previewLimit:   previewLimit,
		logger:         logger,
	}
	for _, label := range vocabulary {
		kw := labelKeyword(label)
		s.labelToKeyword[label] = kw
		s.keywordToLabel[kw] = label
	}
	return s, nil
}

// labelKeyword maps a display label to an IMAP keyword atom. Keywords cannot
// contain spaces or brackets, so non-atom characters collapse to hyphens.
func labelKeyword(label string) imap.Flag {
	var b strings.Builder
	lastHyphen := true
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	atom := strings.TrimSuffix(b.String(), "-")
	return imap.Flag(keywordPrefix + atom)
}

// SearchUnlabeled returns UIDs of INBOX messages carrying none of the
// vocabulary keywords.
func (s *IMAPStore) SearchUnlabeled(ctx context.Context, q Query) ([]string, error) {
	criteria := &imap.SearchCriteria{}
	for _, kw := range s.labelToKeyword {
		criteria.NotFlag = append(criteria.NotFlag, kw)
	}
	if q.MinAge > 0 {
		criteria.Before = time.Now().Add(-q.MinAge)
	}

	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to search unlabeled messages: %w", err)
	}

	uids := data.AllUIDs()
	if q.Limit > 0 && len(uids) > q.Limit {
		uids = uids[:q.Limit]
	}

	ids := make([]string, len(uids))
	for i, uid := range uids {
		ids[i] = strconv.FormatUint(uint64(uid), 10)
	}
	return ids, nil
}

// FetchMetadata resolves envelope, flags and a body preview for a batch of
// UIDs in one FETCH round trip.
func (s *IMAPStore) FetchMetadata(ctx context.Context, ids []string) ([]*Metadata, error) {
	uidSet, err := parseUIDSet(ids)
	if err != nil {
		return nil, err
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	options := &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		Flags:        true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodySection},
	}

	messages, err := s.client.Fetch(uidSet, options).Collect()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message metadata: %w", err)
	}

	metas := make([]*Metadata, 0, len(messages))
	for _, msg := range messages {
		meta := &Metadata{
			ID:   strconv.FormatUint(uint64(msg.UID), 10),
			Date: msg.InternalDate,
		}
		if msg.Envelope != nil {
			meta.Subject = msg.Envelope.Subject
			if len(msg.Envelope.From) > 0 {
				meta.Sender = msg.Envelope.From[0].Addr()
			}
		}
		for _, flag := range msg.Flags {
			if label, ok := s.keywordToLabel[flag]; ok {
				meta.Labels = append(meta.Labels, label)
			}
		}
		if raw := msg.FindBodySection(bodySection); len(raw) > 0 {
			meta.Preview = ExtractPreview(raw, s.previewLimit)
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// AddLabel stores the label's keyword on the message.
func (s *IMAPStore) AddLabel(ctx context.Context, id string, label string) error {
	kw, ok := s.labelToKeyword[label]
	if !ok {
		kw = labelKeyword(label)
	}

	uidSet, err := parseUIDSet([]string{id})
	if err != nil {
		return err
	}

	store := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{kw},
	}
	if err := s.client.Store(uidSet, store, nil).Close(); err != nil {
		return fmt.Errorf("failed to add label %q: %w", label, err)
	}
	return nil
}

// Archive moves the message out of INBOX into the archive mailbox.
func (s *IMAPStore) Archive(ctx context.Context, id string) error {
	uidSet, err := parseUIDSet([]string{id})
	if err != nil {
		return err
	}

	if _, err := s.client.Move(uidSet, s.archiveMailbox).Wait(); err != nil {
		return fmt.Errorf("failed to archive message %s: %w", id, err)
	}
	return nil
}

// EnsureLabels creates the archive mailbox if missing. Keywords need no
// provisioning: servers create them on first STORE.
func (s *IMAPStore) EnsureLabels(ctx context.Context, names []string) error {
	if err := s.client.Create(s.archiveMailbox, nil).Wait(); err != nil {
		// Most servers reject creating an existing mailbox; that is fine.
		if s.logger != nil {
			s.logger.Debug("archive_mailbox_create_skipped", zap.String("mailbox", s.archiveMailbox))
		}
	}
	return nil
}

// SearchByLabel returns metadata for messages carrying the label's keyword,
// searching the archive mailbox (where triaged mail lives) and INBOX.
func (s *IMAPStore) SearchByLabel(ctx context.Context, label string, limit int) ([]*Metadata, error) {
	kw, ok := s.labelToKeyword[label]
	if !ok {
		kw = labelKeyword(label)
	}

	var all []*Metadata
	for _, mailbox := range []string{s.archiveMailbox, "INBOX"} {
		if _, err := s.client.Select(mailbox, nil).Wait(); err != nil {
			return nil, fmt.Errorf("failed to select %s: %w", mailbox, err)
		}

		criteria := &imap.SearchCriteria{Flag: []imap.Flag{kw}}
		data, err := s.client.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return nil, fmt.Errorf("failed to search label %q in %s: %w", label, mailbox, err)
		}

		uids := data.AllUIDs()
		if limit > 0 && len(uids) > limit-len(all) {
			uids = uids[:limit-len(all)]
		}
		if len(uids) > 0 {
			ids := make([]string, len(uids))
			for i, uid := range uids {
				ids[i] = strconv.FormatUint(uint64(uid), 10)
			}
			metas, err := s.FetchMetadata(ctx, ids)
			if err != nil {
				return nil, err
			}
			all = append(all, metas...)
		}
		if limit > 0 && len(all) >= limit {
			break
		}
	}

	// Leave INBOX selected for the next pipeline operation.
	if _, err := s.client.Select("INBOX", nil).Wait(); err != nil {
		return nil, fmt.Errorf("failed to reselect INBOX: %w", err)
	}
	return all, nil
}

// Close logs out and closes the connection.
func (s *IMAPStore) Close() error {
	if err := s.client.Logout().Wait(); err != nil {
		return s.client.Close()
	}
	return nil
}

func parseUIDSet(ids []string) (imap.UIDSet, error) {
	uids := make([]imap.UID, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid message id %q: %w", id, err)
		}
		uids = append(uids, imap.UID(n))
	}
	return imap.UIDSetNum(uids...), nil
}

// Ensure IMAPStore implements the interface
var _ Store = (*IMAPStore)(nil)
