package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/domain"
)

// Accounts
const (
	sqlInsertAccount = `INSERT INTO accounts(id, username, password_hash, web_public_key, web_private_key, created_at)
                        VALUES (?, ?, ?, ?, ?, ?)`
	sqlSelectAccountColumns    = `SELECT id, username, password_hash, web_public_key, web_private_key, created_at FROM accounts`
	sqlSelectAccountById       = sqlSelectAccountColumns + ` WHERE id = ?`
	sqlSelectAccountByUsername = sqlSelectAccountColumns + ` WHERE username = ?`
	sqlCountUsernames          = `SELECT COUNT(*) FROM accounts WHERE username = ?`
	sqlDeleteAccount           = `DELETE FROM accounts WHERE id = ?`
)

// Authors
const (
	sqlInsertAuthor = `INSERT INTO authors(id, account_id, display_name, github_url, url, host, created_at)
                       VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlUpdateAuthor           = `UPDATE authors SET display_name = ?, github_url = ?, url = ?, host = ? WHERE id = ?`
	sqlSelectAuthorColumns    = `SELECT id, account_id, display_name, github_url, url, host, created_at FROM authors`
	sqlSelectAuthorById       = sqlSelectAuthorColumns + ` WHERE id = ?`
	sqlSelectAuthorByURL      = sqlSelectAuthorColumns + ` WHERE url = ?`
	sqlSelectAuthorByAccount  = sqlSelectAuthorColumns + ` WHERE account_id = ?`
	sqlSelectAuthorByUsername = `SELECT authors.id, authors.account_id, authors.display_name, authors.github_url, authors.url, authors.host, authors.created_at
                                 FROM authors INNER JOIN accounts ON accounts.id = authors.account_id
                                 WHERE accounts.username = ?`
	sqlSelectAuthorsPage = sqlSelectAuthorColumns + ` WHERE host = ? ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`
	sqlCountAuthors      = `SELECT COUNT(*) FROM authors WHERE host = ?`
)

func (q *Queries) CreateAccount(ctx context.Context, acc *domain.Account) error {
	_, err := q.exec(ctx, sqlInsertAccount,
		acc.Id.String(),
		acc.Username,
		acc.PasswordHash,
		acc.WebPublicKey,
		acc.WebPrivateKey,
		acc.CreatedAt,
	)
	return err
}

func (q *Queries) ReadAccountById(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return scanAccount(q.q.QueryRowContext(ctx, sqlSelectAccountById, id.String()))
}

func (q *Queries) ReadAccountByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return scanAccount(q.q.QueryRowContext(ctx, sqlSelectAccountByUsername, username))
}

func (q *Queries) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var n int
	if err := q.q.QueryRowContext(ctx, sqlCountUsernames, username).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAccount removes the account and, through cascades, its author and everything
// the author owns.
func (q *Queries) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return q.execOne(ctx, sqlDeleteAccount, id.String())
}

func (q *Queries) CreateAuthor(ctx context.Context, a *domain.Author) error {
	_, err := q.exec(ctx, sqlInsertAuthor,
		a.Id.String(),
		a.AccountId.String(),
		a.DisplayName,
		a.GithubURL,
		a.URL,
		a.Host,
		a.CreatedAt,
	)
	return err
}

func (q *Queries) UpdateAuthor(ctx context.Context, a *domain.Author) error {
	return q.execOne(ctx, sqlUpdateAuthor, a.DisplayName, a.GithubURL, a.URL, a.Host, a.Id.String())
}

func (q *Queries) ReadAuthorById(ctx context.Context, id uuid.UUID) (*domain.Author, error) {
	return scanAuthor(q.q.QueryRowContext(ctx, sqlSelectAuthorById, id.String()))
}

func (q *Queries) ReadAuthorByURL(ctx context.Context, url string) (*domain.Author, error) {
	return scanAuthor(q.q.QueryRowContext(ctx, sqlSelectAuthorByURL, domain.NormalizeURL(url)))
}

func (q *Queries) ReadAuthorByAccountId(ctx context.Context, accountId uuid.UUID) (*domain.Author, error) {
	return scanAuthor(q.q.QueryRowContext(ctx, sqlSelectAuthorByAccount, accountId.String()))
}

func (q *Queries) ReadAuthorByUsername(ctx context.Context, username string) (*domain.Author, error) {
	return scanAuthor(q.q.QueryRowContext(ctx, sqlSelectAuthorByUsername, username))
}

// ReadAuthorsByHost pages through the authors hosted at host, oldest first.
func (q *Queries) ReadAuthorsByHost(ctx context.Context, host string, limit, offset int) ([]domain.Author, int, error) {
	var total int
	if err := q.q.QueryRowContext(ctx, sqlCountAuthors, host).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.q.QueryContext(ctx, sqlSelectAuthorsPage, host, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var authors []domain.Author
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return authors, total, err
		}
		authors = append(authors, *a)
	}
	return authors, total, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*domain.Account, error) {
	var acc domain.Account
	err := row.Scan(&acc.Id, &acc.Username, &acc.PasswordHash, &acc.WebPublicKey, &acc.WebPrivateKey, &acc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func scanAuthor(row scanner) (*domain.Author, error) {
	var a domain.Author
	err := row.Scan(&a.Id, &a.AccountId, &a.DisplayName, &a.GithubURL, &a.URL, &a.Host, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("author: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
