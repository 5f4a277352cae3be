package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartresidence/resident-backend/internal/models"
)

// NoticeRepository handles notice data access
type NoticeRepository struct {
	db Queryer
}

// NewNoticeRepository creates a new notice repository
func NewNoticeRepository(db Queryer) *NoticeRepository {
	return &NoticeRepository{db: db}
}

// Create inserts a notice
func (r *NoticeRepository) Create(notice *models.Notice) error {
	query := `
		INSERT INTO notices (id, apartment_id, title, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(query, notice.ID, notice.ApartmentID, notice.Title, notice.Body, notice.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notice: %w", err)
	}

	return nil
}

// GetByID retrieves a notice by ID
func (r *NoticeRepository) GetByID(id uuid.UUID) (*models.Notice, error) {
	var notice models.Notice

	query := `SELECT id, apartment_id, title, body, created_at FROM notices WHERE id = $1`

	err := r.db.Get(&notice, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Notice not found, return nil without error
		}
		return nil, fmt.Errorf("failed to get notice by ID: %w", err)
	}

	return &notice, nil
}

// List retrieves notices of an apartment, newest first, with pagination
func (r *NoticeRepository) List(apartmentID uuid.UUID, limit, offset int) ([]*models.Notice, error) {
	var notices []*models.Notice

	query := `
		SELECT id, apartment_id, title, body, created_at
		FROM notices
		WHERE apartment_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	err := r.db.Select(&notices, query, apartmentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notices: %w", err)
	}

	return notices, nil
}

// Count returns the number of notices of an apartment
func (r *NoticeRepository) Count(apartmentID uuid.UUID) (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM notices WHERE apartment_id = $1`

	err := r.db.QueryRow(query, apartmentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notices: %w", err)
	}

	return count, nil
}

// Delete removes a notice
func (r *NoticeRepository) Delete(id uuid.UUID) error {
	query := `DELETE FROM notices WHERE id = $1`

	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete notice: %w", err)
	}

	return nil
}

// TicketRepository handles maintenance ticket data access
type TicketRepository struct {
	db Queryer
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db Queryer) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketColumns = `id, apartment_id, flat_id, client_id, title, body, photo_url, status, created_at, updated_at`

// Create inserts a maintenance ticket
func (r *TicketRepository) Create(ticket *models.MaintenanceTicket) error {
	query := `
		INSERT INTO maintenance_tickets (
			id, apartment_id, flat_id, client_id, title, body, photo_url, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(
		query,
		ticket.ID,
		ticket.ApartmentID,
		ticket.FlatID,
		ticket.ClientID,
		ticket.Title,
		ticket.Body,
		ticket.PhotoURL,
		ticket.Status,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create maintenance ticket: %w", err)
	}

	return nil
}

// GetByID retrieves a ticket by ID
func (r *TicketRepository) GetByID(id uuid.UUID) (*models.MaintenanceTicket, error) {
	var ticket models.MaintenanceTicket

	query := `SELECT ` + ticketColumns + ` FROM maintenance_tickets WHERE id = $1`

	err := r.db.Get(&ticket, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ticket by ID: %w", err)
	}

	return &ticket, nil
}

// ListByApartment retrieves tickets of an apartment with pagination,
// optionally filtered by status.
func (r *TicketRepository) ListByApartment(apartmentID uuid.UUID, status *models.TicketStatus, limit, offset int) ([]*models.MaintenanceTicket, error) {
	var tickets []*models.MaintenanceTicket

	query := `
		SELECT ` + ticketColumns + `
		FROM maintenance_tickets
		WHERE apartment_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	err := r.db.Select(&tickets, query, apartmentID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	return tickets, nil
}

// CountByApartment returns the number of tickets of an apartment
func (r *TicketRepository) CountByApartment(apartmentID uuid.UUID, status *models.TicketStatus) (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM maintenance_tickets WHERE apartment_id = $1 AND ($2::text IS NULL OR status = $2)`

	err := r.db.QueryRow(query, apartmentID, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	return count, nil
}

// ListByClient retrieves a resident's own tickets, newest first
func (r *TicketRepository) ListByClient(clientID uuid.UUID, limit, offset int) ([]*models.MaintenanceTicket, error) {
	var tickets []*models.MaintenanceTicket

	query := `
		SELECT ` + ticketColumns + `
		FROM maintenance_tickets
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	err := r.db.Select(&tickets, query, clientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets by client: %w", err)
	}

	return tickets, nil
}

// UpdateStatus moves a ticket through its lifecycle
func (r *TicketRepository) UpdateStatus(id uuid.UUID, status models.TicketStatus) error {
	query := `UPDATE maintenance_tickets SET status = $1, updated_at = $2 WHERE id = $3`

	_, err := r.db.Exec(query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update ticket status: %w", err)
	}

	return nil
}

// BlogPostRepository handles blog post data access
type BlogPostRepository struct {
	db Queryer
}

// NewBlogPostRepository creates a new blog post repository
func NewBlogPostRepository(db Queryer) *BlogPostRepository {
	return &BlogPostRepository{db: db}
}

const blogPostColumns = `id, title, slug, body, cover_url, published, publish_at, created_at`

// Create inserts a blog post
func (r *BlogPostRepository) Create(post *models.BlogPost) error {
	query := `
		INSERT INTO blog_posts (id, title, slug, body, cover_url, published, publish_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(
		query,
		post.ID,
		post.Title,
		post.Slug,
		post.Body,
		post.CoverURL,
		post.Published,
		post.PublishAt,
		post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create blog post: %w", err)
	}

	return nil
}

// GetBySlug retrieves a published post by slug
func (r *BlogPostRepository) GetBySlug(slug string) (*models.BlogPost, error) {
	var post models.BlogPost

	query := `SELECT ` + blogPostColumns + ` FROM blog_posts WHERE slug = $1 AND published = true`

	err := r.db.Get(&post, query, slug)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get blog post by slug: %w", err)
	}

	return &post, nil
}

// GetByID retrieves a post by ID regardless of publish state
func (r *BlogPostRepository) GetByID(id uuid.UUID) (*models.BlogPost, error) {
	var post models.BlogPost

	query := `SELECT ` + blogPostColumns + ` FROM blog_posts WHERE id = $1`

	err := r.db.Get(&post, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get blog post by ID: %w", err)
	}

	return &post, nil
}

// ListPublished retrieves published posts, newest first, with pagination
func (r *BlogPostRepository) ListPublished(limit, offset int) ([]*models.BlogPost, error) {
	var posts []*models.BlogPost

	query := `
		SELECT ` + blogPostColumns + `
		FROM blog_posts
		WHERE published = true
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	err := r.db.Select(&posts, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list published blog posts: %w", err)
	}

	return posts, nil
}

// CountPublished returns the number of published posts
func (r *BlogPostRepository) CountPublished() (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM blog_posts WHERE published = true`

	err := r.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count published blog posts: %w", err)
	}

	return count, nil
}

// PublishDue marks every unpublished post whose publish time has arrived as
// published, and returns how many were flipped.
func (r *BlogPostRepository) PublishDue(asOf time.Time) (int64, error) {
	query := `
		UPDATE blog_posts
		SET published = true
		WHERE published = false AND publish_at IS NOT NULL AND publish_at <= $1
	`

	result, err := r.db.Exec(query, asOf)
	if err != nil {
		return 0, fmt.Errorf("failed to publish due blog posts: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// Delete removes a blog post
func (r *BlogPostRepository) Delete(id uuid.UUID) error {
	query := `DELETE FROM blog_posts WHERE id = $1`

	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete blog post: %w", err)
	}

	return nil
}
