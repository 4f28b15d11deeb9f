package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MariaSetRepo реализует BlobRepo для базы данных MariaDB/MySQL.
// Использует таблицу chunk_sets: одна строка на мир.
type MariaSetRepo struct {
	db *sql.DB
}

const upsertSetQuery = `
	INSERT INTO chunk_sets (world, data)
	VALUES (?, ?)
	ON DUPLICATE KEY UPDATE
		data = VALUES(data),
		updated_at = CURRENT_TIMESTAMP
`

// NewMariaSetRepo создает новый репозиторий наборов чанков для MariaDB.
// Автоматически создает таблицу, если она не существует.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname)
func NewMariaSetRepo(dsn string) (*MariaSetRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaSetRepo{db: db}

	if err := repo.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}

	return repo, nil
}

// createTable создает таблицу chunk_sets, если она не существует.
func (r *MariaSetRepo) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS chunk_sets (
			world      VARCHAR(255) PRIMARY KEY,
			data       MEDIUMBLOB   NOT NULL,
			updated_at TIMESTAMP    DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE    CURRENT_TIMESTAMP
		) ENGINE=InnoDB
	`

	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("ошибка создания таблицы chunk_sets: %w", err)
	}
	return nil
}

// Put сохраняет набор мира (INSERT ... ON DUPLICATE KEY UPDATE).
func (r *MariaSetRepo) Put(ctx context.Context, world string, data []byte) error {
	if err := validateWorld(world); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, upsertSetQuery, world, data); err != nil {
		return fmt.Errorf("ошибка сохранения набора чанков мира %s: %w", world, err)
	}
	return nil
}

// Get загружает набор мира.
func (r *MariaSetRepo) Get(ctx context.Context, world string) ([]byte, bool, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM chunk_sets WHERE world = ?`, world).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка загрузки набора чанков мира %s: %w", world, err)
	}

	return data, true, nil
}

// Delete удаляет набор мира.
func (r *MariaSetRepo) Delete(ctx context.Context, world string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chunk_sets WHERE world = ?`, world); err != nil {
		return fmt.Errorf("ошибка удаления набора чанков мира %s: %w", world, err)
	}
	return nil
}

// BatchPut сохраняет наборы нескольких миров в одной транзакции.
func (r *MariaSetRepo) BatchPut(ctx context.Context, items map[string][]byte) error {
	if len(items) == 0 {
		return nil // Нечего сохранять
	}

	// Начинаем транзакцию
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback() // Откат в случае ошибки

	stmt, err := tx.PrepareContext(ctx, upsertSetQuery)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	for world, data := range items {
		if err := validateWorld(world); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, world, data); err != nil {
			return fmt.Errorf("ошибка сохранения мира %s в batch: %w", world, err)
		}
	}

	// Фиксируем транзакцию
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// List возвращает имена всех миров в таблице.
func (r *MariaSetRepo) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT world FROM chunk_sets ORDER BY world`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка миров: %w", err)
	}
	defer rows.Close()

	worlds := make([]string, 0)
	for rows.Next() {
		var world string
		if err := rows.Scan(&world); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки: %w", err)
		}
		worlds = append(worlds, world)
	}
	return worlds, rows.Err()
}

// Close закрывает соединение с базой данных.
func (r *MariaSetRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
