package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/uiucchat/chatcore/store"
)

const conversationColumns = "`id`, `uid`, `name`, `course_name`, `model_id`, `prompt`, `temperature`, `user_email`, `created_ts`, `updated_ts`"

func (d *DB) UpsertConversation(ctx context.Context, upsert *store.Conversation) (*store.Conversation, error) {
	stmt := "INSERT INTO `conversation` (`uid`, `name`, `course_name`, `model_id`, `prompt`, `temperature`, `user_email`) " +
		"VALUES (?, ?, ?, ?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE `name` = VALUES(`name`), `course_name` = VALUES(`course_name`), " +
		"`model_id` = VALUES(`model_id`), `prompt` = VALUES(`prompt`), `temperature` = VALUES(`temperature`), " +
		"`user_email` = VALUES(`user_email`), `updated_ts` = UNIX_TIMESTAMP()"
	if _, err := d.db.ExecContext(ctx, stmt,
		upsert.UID, upsert.Name, upsert.CourseName, upsert.ModelID, upsert.Prompt, upsert.Temperature, upsert.UserEmail,
	); err != nil {
		return nil, err
	}
	// Read it back to pick up the id and timestamps.
	list, err := d.ListConversations(ctx, &store.FindConversation{UID: &upsert.UID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Errorf("conversation %s not found after upsert", upsert.UID)
	}
	return list[0], nil
}

func (d *DB) ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.UID; v != nil {
		where, args = append(where, "`uid` = ?"), append(args, *v)
	}
	if v := find.CourseName; v != nil {
		where, args = append(where, "`course_name` = ?"), append(args, *v)
	}
	if v := find.UserEmail; v != nil {
		where, args = append(where, "`user_email` = ?"), append(args, *v)
	}
	query := fmt.Sprintf(
		"SELECT %s FROM `conversation` WHERE %s ORDER BY `updated_ts` DESC, `id` DESC",
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
	_, err := d.db.ExecContext(ctx, "DELETE FROM `conversation` WHERE `uid` = ?", uid)
	return err
}

func (d *DB) ReplaceConversationMessages(ctx context.Context, conversationID int32, messages []*store.ConversationMessage) ([]*store.ConversationMessage, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Lock the header row so concurrent saves of one conversation run one after another.
	var locked int32
	if err := tx.QueryRowContext(ctx, "SELECT `id` FROM `conversation` WHERE `id` = ? FOR UPDATE", conversationID).Scan(&locked); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM `conversation_message` WHERE `conversation_id` = ?", conversationID); err != nil {
		return nil, err
	}
	stmt := "INSERT INTO `conversation_message` " +
		"(`conversation_id`, `uid`, `role`, `content`, `contexts`, `tools`, `final_prompt`, `system_prompt`) " +
		"VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	list := make([]*store.ConversationMessage, 0, len(messages))
	for _, create := range messages {
		m := *create
		m.ConversationID = conversationID
		result, err := tx.ExecContext(ctx, stmt,
			m.ConversationID, m.UID, m.Role, m.Content, m.Contexts, m.Tools, m.FinalPrompt, m.SystemPrompt,
		)
		if err != nil {
			return nil, err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, err
		}
		m.ID = int32(id)
		if err := tx.QueryRowContext(ctx, "SELECT `created_ts` FROM `conversation_message` WHERE `id` = ?", id).Scan(&m.CreatedTs); err != nil {
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
	query := "SELECT `id`, `conversation_id`, `uid`, `role`, `content`, `contexts`, `tools`, `final_prompt`, `system_prompt`, `created_ts` " +
		"FROM `conversation_message` WHERE `conversation_id` = ? ORDER BY `id` ASC"
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
