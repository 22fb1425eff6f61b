package migrations

import (
	"gorm.io/gorm"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/pkg/migration"
)

func init() {
	migration.Register("20240601000001_create_geography", &tables{
		models: []interface{}{&models.Region{}, &models.Commune{}},
		after:  seedGeography,
	})
}

type regionSeed struct {
	region   models.Region
	communes []string
}

// geography lists the sixteen regions with the communes the store serves.
// Admins add the rest through the API.
var geography = []regionSeed{
	{models.Region{ID: 1, Code: "CL-AP", Name: "Arica y Parinacota", Ordinal: 1}, []string{"Arica", "Putre"}},
	{models.Region{ID: 2, Code: "CL-TA", Name: "Tarapacá", Ordinal: 2}, []string{"Iquique", "Alto Hospicio", "Pozo Almonte"}},
	{models.Region{ID: 3, Code: "CL-AN", Name: "Antofagasta", Ordinal: 3}, []string{"Antofagasta", "Calama", "Tocopilla", "Mejillones"}},
	{models.Region{ID: 4, Code: "CL-AT", Name: "Atacama", Ordinal: 4}, []string{"Copiapó", "Vallenar", "Caldera"}},
	{models.Region{ID: 5, Code: "CL-CO", Name: "Coquimbo", Ordinal: 5}, []string{"La Serena", "Coquimbo", "Ovalle", "Illapel"}},
	{models.Region{ID: 6, Code: "CL-VS", Name: "Valparaíso", Ordinal: 6}, []string{
		"Valparaíso", "Viña del Mar", "Quilpué", "Villa Alemana", "Concón", "San Antonio", "Los Andes", "Quillota",
	}},
	{models.Region{ID: 7, Code: "CL-RM", Name: "Metropolitana de Santiago", Ordinal: 7}, []string{
		"Santiago", "Providencia", "Ñuñoa", "Las Condes", "Vitacura", "Lo Barnechea", "La Reina", "Macul",
		"Peñalolén", "La Florida", "Puente Alto", "Maipú", "Estación Central", "Quinta Normal", "Recoleta",
		"Independencia", "Conchalí", "Huechuraba", "Quilicura", "Renca", "Cerro Navia", "Pudahuel", "Lo Prado",
		"San Miguel", "San Joaquín", "La Cisterna", "El Bosque", "San Bernardo", "La Granja", "La Pintana",
		"San Ramón", "Lo Espejo", "Pedro Aguirre Cerda", "Cerrillos", "Colina", "Lampa", "Buin", "Paine",
		"Melipilla", "Talagante", "Peñaflor",
	}},
	{models.Region{ID: 8, Code: "CL-LI", Name: "Libertador General Bernardo O'Higgins", Ordinal: 8}, []string{"Rancagua", "San Fernando", "Machalí", "Pichilemu"}},
	{models.Region{ID: 9, Code: "CL-ML", Name: "Maule", Ordinal: 9}, []string{"Talca", "Curicó", "Linares", "Constitución"}},
	{models.Region{ID: 10, Code: "CL-NB", Name: "Ñuble", Ordinal: 10}, []string{"Chillán", "Chillán Viejo", "San Carlos"}},
	{models.Region{ID: 11, Code: "CL-BI", Name: "Biobío", Ordinal: 11}, []string{
		"Concepción", "Talcahuano", "San Pedro de la Paz", "Coronel", "Chiguayante", "Los Ángeles",
	}},
	{models.Region{ID: 12, Code: "CL-AR", Name: "La Araucanía", Ordinal: 12}, []string{"Temuco", "Padre Las Casas", "Villarrica", "Angol"}},
	{models.Region{ID: 13, Code: "CL-LR", Name: "Los Ríos", Ordinal: 13}, []string{"Valdivia", "La Unión", "Panguipulli"}},
	{models.Region{ID: 14, Code: "CL-LL", Name: "Los Lagos", Ordinal: 14}, []string{"Puerto Montt", "Osorno", "Puerto Varas", "Castro", "Ancud"}},
	{models.Region{ID: 15, Code: "CL-AI", Name: "Aysén del General Carlos Ibáñez del Campo", Ordinal: 15}, []string{"Coyhaique", "Aysén"}},
	{models.Region{ID: 16, Code: "CL-MA", Name: "Magallanes y de la Antártica Chilena", Ordinal: 16}, []string{"Punta Arenas", "Puerto Natales", "Porvenir"}},
}

// seedGeography inserts the regions and communes that are missing and adds
// the commune references to tables created before this step.
func seedGeography(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Branch{}, &models.Customer{}, &models.Order{}); err != nil {
		return err
	}
	for _, g := range geography {
		region := g.region
		if err := insertMissing(db, &region); err != nil {
			return err
		}
		communes := make([]models.Commune, len(g.communes))
		for i, name := range g.communes {
			communes[i] = models.Commune{RegionID: region.ID, Name: name}
		}
		if err := insertMissing(db, &communes); err != nil {
			return err
		}
	}
	return nil
}
