package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/uiucchat/chatcore/store"
)

const conversationColumns = `id, uid, name, course_name, model_id, prompt, temperature, user_email, created_ts, updated_ts`

func (d *DB) UpsertConversation(ctx context.Context, upsert *store.Conversation) (*store.Conversation, error) {
	stmt := `INSERT INTO conversation (uid, name, course_name, model_id, prompt, temperature, user_email)
	         VALUES (?, ?, ?, ?, ?, ?, ?)
	         ON CONFLICT (uid) DO UPDATE SET
	           name = EXCLUDED.name,
	           course_name = EXCLUDED.course_name,
	           model_id = EXCLUDED.model_id,
	           prompt = EXCLUDED.prompt,
	           temperature = EXCLUDED.temperature,
	           user_email = EXCLUDED.user_email,
	           updated_ts = strftime('%s', 'now')
	         RETURNING ` + conversationColumns
	c := &store.Conversation{}
	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.UID, upsert.Name, upsert.CourseName, upsert.ModelID, upsert.Prompt, upsert.Temperature, upsert.UserEmail,
	).Scan(&c.ID, &c.UID, &c.Name, &c.CourseName, &c.ModelID, &c.Prompt, &c.Temperature, &c.UserEmail, &c.CreatedTs, &c.UpdatedTs); err != nil {
		return nil, err
	}
	return c, nil
}

func (d *DB) ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = ?"), append(args, *v)
	}
	if v := find.CourseName; v != nil {
		where, args = append(where, "course_name = ?"), append(args, *v)
	}
	if v := find.UserEmail; v != nil {
		where, args = append(where, "user_email = ?"), append(args, *v)
	}
	query := fmt.Sprintf(
		`SELECT %s FROM conversation WHERE %s ORDER BY updated_ts DESC, id DESC`,
		conversationColumns, strings.Join(where, " AND "),
	)
	if v := find.Limit; v != nil {
		query += fmt.Sprintf(" LIMIT %d", *v)
	}
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*store.Conversation
	for rows.Next() {
		c := &store.Conversation{}
		if err := rows.Scan(&c.ID, &c.UID, &c.Name, &c.CourseName, &c.ModelID, &c.Prompt, &c.Temperature, &c.UserEmail, &c.CreatedTs, &c.UpdatedTs); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (d *DB) DeleteConversation(ctx context.Context, uid string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM conversation WHERE uid = ?`, uid)
	return err
}

func (d *DB) ReplaceConversationMessages(ctx context.Context, conversationID int32, messages []*store.ConversationMessage) ([]*store.ConversationMessage, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_message WHERE conversation_id = ?`, conversationID); err != nil {
		return nil, err
	}
	stmt := `INSERT INTO conversation_message (conversation_id, uid, role, content, contexts, tools, final_prompt, system_prompt)
	         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	         RETURNING id, created_ts`
	list := make([]*store.ConversationMessage, 0, len(messages))
	for _, create := range messages {
		m := *create
		m.ConversationID = conversationID
		if err := tx.QueryRowContext(ctx, stmt,
			m.ConversationID, m.UID, m.Role, m.Content, m.Contexts, m.Tools, m.FinalPrompt, m.SystemPrompt,
		).Scan(&m.ID, &m.CreatedTs); err != nil {
			return nil, err
		}
		list = append(list, &m)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) ListConversationMessages(ctx context.Context, find *store.FindConversationMessage) ([]*store.ConversationMessage, error) {
	query := `SELECT id, conversation_id, uid, role, content, contexts, tools, final_prompt, system_prompt, created_ts
	          FROM conversation_message WHERE conversation_id = ? ORDER BY id ASC`
	rows, err := d.db.QueryContext(ctx, query, find.ConversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*store.ConversationMessage
	for rows.Next() {
		m := &store.ConversationMessage{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UID, &m.Role, &m.Content, &m.Contexts, &m.Tools, &m.FinalPrompt, &m.SystemPrompt, &m.CreatedTs); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
