package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sort"
	"time"

	"rfpmanager/internal/config"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// imapMailbox реализация Mailbox поверх go-imap
type imapMailbox struct {
	c       *client.Client
	newMail chan struct{}
}

// DialIMAP возвращает Dialer, открывающий INBOX на IMAP-сервере.
func DialIMAP(cfg config.EmailConfig) Dialer {
	return func(ctx context.Context) (Mailbox, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			c   *client.Client
			err error
		)
		dialer := &net.Dialer{Timeout: 30 * time.Second}
		if cfg.IMAPSecure {
			c, err = client.DialWithDialerTLS(dialer, cfg.IMAPAddr(), &tls.Config{ServerName: cfg.IMAPHost})
		} else {
			c, err = client.DialWithDialer(dialer, cfg.IMAPAddr())
		}
		if err != nil {
			return nil, fmt.Errorf("dial imap %s: %w", cfg.IMAPAddr(), err)
		}

		if err := c.Login(cfg.User, cfg.Password); err != nil {
			c.Logout()
			return nil, fmt.Errorf("imap login: %w", err)
		}

		updates := make(chan client.Update, 16)
		c.Updates = updates
		if _, err := c.Select("INBOX", false); err != nil {
			c.Logout()
			return nil, fmt.Errorf("select inbox: %w", err)
		}

		m := &imapMailbox{c: c, newMail: make(chan struct{}, 1)}
		go m.watch(updates)
		return m, nil
	}
}

// watch вычитывает обновления клиента, чтобы он не блокировался, и отмечает приход новой почты
func (m *imapMailbox) watch(updates <-chan client.Update) {
	for {
		select {
		case u := <-updates:
			if _, ok := u.(*client.MailboxUpdate); ok {
				select {
				case m.newMail <- struct{}{}:
				default:
				}
			}
		case <-m.c.LoggedOut():
			return
		}
	}
}

func (m *imapMailbox) Unseen(ctx context.Context, since time.Time) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = since

	uids, err := m.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}
	return uids, nil
}

func (m *imapMailbox) Fetch(ctx context.Context, uids []uint32) ([]RawMessage, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	ch := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- m.c.UidFetch(seqset, items, ch)
	}()

	out := make([]RawMessage, 0, len(uids))
	for msg := range ch {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		b, err := io.ReadAll(body)
		if err != nil {
			continue
		}
		out = append(out, RawMessage{UID: msg.Uid, Body: b})
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("uid fetch: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (m *imapMailbox) MarkSeen(ctx context.Context, uid uint32) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	return m.c.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil)
}

func (m *imapMailbox) Idle(stop <-chan struct{}, notify chan<- struct{}) error {
	done := make(chan error, 1)
	go func() {
		done <- m.c.Idle(stop, nil)
	}()

	for {
		select {
		case <-m.newMail:
			select {
			case notify <- struct{}{}:
			default:
			}
		case err := <-done:
			return err
		}
	}
}

func (m *imapMailbox) Close() error {
	return m.c.Logout()
}
