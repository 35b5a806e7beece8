package assistant

import (
	"fmt"
	"strings"

	"labtrack/internal/domain"
)

// The system instructions are fixed Spanish texts tuned for the
// pharmaceutical quality-control lab. The user prompt carries the task's
// known fields.

const (
	describeSystem = "Eres un experto en gestión de tareas. Genera una descripción profesional de máximo 300 palabras a partir de la tarea que te da el usuario."

	effortSystem = "Eres un experto en estimación de tiempo para la ejecución de tareas. Calcula el tiempo en horas que toma ejecutar la tarea correspondiente, este dato debe estar entre 2 a 48 horas. Las tareas de desarrollo, control de calidad y testing toman al menos 8 horas, las tareas de desarrollo frontend, backend y desarrollo general toman 24 horas, la tarea de documentación toma 4 horas, la tarea de base de datos toma 16 horas, la tarea de investigación toma 48 horas, supervisión y riesgos laborales toman 4 horas y otros toman 6 horas. Devuelve ÚNICAMENTE un número de horas."

	risksSystem = "Eres un experto en análisis de riesgos en la ejecución de tareas. Identifica los riesgos potenciales según la tarea y la descripción de la tarea. Genera una respuesta de máximo 200 palabras."

	mitigationSystem = "Eres un experto en gestión de riesgos de un laboratorio de control de calidad de la industria farmacéutica. Genera un plan de mitigación para los riesgos potenciales según la tarea, su descripción y la descripción de los riesgos. Genera una respuesta de máximo 300 palabras."

	storySystem = "Eres un experto en gestión ágil de proyectos. Genera una historia de usuario en formato JSON con los campos: project, role, goal, reason, description, priority (baja, media, alta, bloqueante), story_points (1-8), effort_hours (decimal). Responde solo el JSON, sin explicaciones."

	taskListSystem = "Eres un experto en gestión de un laboratorio de control de calidad para la industria farmacéutica. Genera exactamente 5 tareas en formato JSON para una historia de usuario. Cada tarea debe tener un título concreto de máximo 30 palabras y una descripción de máximo 100 palabras. El formato debe ser: [{\"title\": \"Título de la tarea\", \"description\": \"Descripción de la tarea\"}, ...]. Responde solo el JSON, sin explicaciones."
)

// categorizeSystem enumerates the display labels so the model answers with
// one of them; the answer maps back to the internal value.
func categorizeSystem() string {
	return "Eres un experto en clasificación de tareas. Devuelve ÚNICAMENTE una categoría a partir del tipo de tarea y la descripción. La categoría debe pertenecer a una de las siguientes opciones: " +
		strings.Join(domain.CategoryLabels(), ", ") + "."
}

func describePrompt(title string) string {
	return fmt.Sprintf("Genera una descripción para la tarea: %s", title)
}

func categorizePrompt(title, description string) string {
	return fmt.Sprintf("Categoriza la tarea: %s - %s", title, description)
}

func effortPrompt(title, description, category string) string {
	return fmt.Sprintf("Estima las horas para: %s - %s - %s", title, description, category)
}

func risksPrompt(title, description, category string) string {
	return fmt.Sprintf("Analiza los riesgos de: %s - %s - %s", title, description, category)
}

func mitigationPrompt(title, description, category, risks string) string {
	return fmt.Sprintf("Genera un plan de mitigación para los siguientes riesgos: %s - %s - %s - %s", title, description, category, risks)
}
