package repo

import (
	"context"
	"fmt"
)

// ListActiveTemplates loads all active message templates keyed by
// template_key. Callers cache the result; this always hits the database.
func (r *Repository) ListActiveTemplates(ctx context.Context) (map[string]MessageTemplate, error) {
	const q = `
SELECT template_key, template_content, variables, is_active
FROM message_templates
WHERE is_active = TRUE;
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	templates := make(map[string]MessageTemplate)
	for rows.Next() {
		var t MessageTemplate
		if err := rows.Scan(&t.TemplateKey, &t.TemplateContent, &t.Variables, &t.IsActive); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates[t.TemplateKey] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return templates, nil
}
