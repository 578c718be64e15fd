package repo

import "errors"

// Общие ошибки репозитория.
var (
	// ErrNotFound — пост не найден в БД.
	ErrNotFound = errors.New("not found")

	// ErrConflict — пост сейчас publishing, мутация/удаление отклонены.
	ErrConflict = errors.New("post is being published")

	// ErrLeaseLost — lease перехвачен другим проходом, запись не наша.
	ErrLeaseLost = errors.New("lease lost")
)
