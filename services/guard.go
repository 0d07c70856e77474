package services

import "context"

// AuthorizationGuard отвечает на вопрос, является ли пользователь
// организатором или стаффом турнира. Реализуется репозиторием турниров;
// все мутирующие операции сервисов проверяют права через него.
type AuthorizationGuard interface {
	IsOrganizer(ctx context.Context, tournamentID, userID int) (bool, error)
	IsOrganizerOrStaff(ctx context.Context, tournamentID, userID int) (bool, error)
}

// requireOrganizer возвращает ErrOrganizerOnly, если userID не создатель турнира.
func requireOrganizer(ctx context.Context, guard AuthorizationGuard, tournamentID, userID int) error {
	ok, err := guard.IsOrganizer(ctx, tournamentID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOrganizerOnly
	}
	return nil
}

// requireOrganizerOrStaff возвращает ErrForbidden, если userID не организатор
// и не стафф турнира.
func requireOrganizerOrStaff(ctx context.Context, guard AuthorizationGuard, tournamentID, userID int) error {
	ok, err := guard.IsOrganizerOrStaff(ctx, tournamentID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
