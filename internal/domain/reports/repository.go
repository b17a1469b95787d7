package reports

import "context"

// Repository es la tabla append-only de reportes, indexada por id secuencial.
//
// Implementaciones deben devolver ErrNotFound y ErrConflict (del paquete reports)
// para id inexistente y versión desactualizada.
type Repository interface {
	// Append asigna el siguiente id (0, 1, 2...) y guarda el reporte.
	Append(ctx context.Context, r PetReport) (PetReport, error)
	// Update reemplaza el reporte solo si la versión guardada es expectedVersion.
	Update(ctx context.Context, r PetReport, expectedVersion uint64) error
	GetByID(ctx context.Context, id uint64) (PetReport, error)
	// List devuelve en orden de id. Limit <= 0 significa todos.
	List(ctx context.Context, page Page) ([]PetReport, error)
}

type Page struct {
	Offset int
	Limit  int
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Clamp normaliza el límite: default 50, máximo 200.
func (p Page) Clamp() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}
