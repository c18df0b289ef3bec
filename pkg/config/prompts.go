package config

var defaultSources = []string{
	"George Washington",
	"Albert Einstein",
	"Marie Curie",
	"Leonardo da Vinci",
	"Cleopatra VII",
	"Aristotle",
	"William Shakespeare",
	"Wolfgang Amadeus Mozart",
	"Napoleon Bonaparte",
	"Isaac Newton",
	"Charles Darwin",
	"Vincent van Gogh",
	"Ada Lovelace",
	"Martin Luther King Jr.",
}

var defaultTemplates = map[string][]string{
	CategoryPatchscope: {
		"Provide a brief description of the following entity. Syria: A country in the Middle East. Leonardo DiCaprio: An American actor. Samsung: A South Korean multinational corporation. ?:",
		"Describe the historical significance of the person. Julius Caesar: A Roman general and statesman who played a critical role in the demise of the Roman Republic. Napoleon Bonaparte: A French military and political leader who rose to prominence during the French Revolution. ?:",
		"Explain the main scientific contribution of the individual. Isaac Newton: Developed the laws of motion and universal gravitation. Marie Curie: Conducted pioneering research on radioactivity. ?:",
		"Identify the following entity. Paris: The capital city of France. Tokyo: The capital city of Japan. ?:",
		"Describe the artist and their notable work. Pablo Picasso: A Spanish painter who co-founded the Cubist movement and created 'Guernica'. Vincent van Gogh: A Dutch Post-Impressionist painter who created 'The Starry Night'. ?:",
	},
	CategoryFewShot: {
		"Albert Einstein: A German-born theoretical physicist who developed the theory of relativity. Charles Darwin: An English naturalist, geologist, and biologist, best known for his contributions to the science of evolution. ?:",
		"Wolfgang Amadeus Mozart: Composer of 'The Magic Flute' and 'Don Giovanni'. Ludwig van Beethoven: Composer of the 'Ninth Symphony' and 'Moonlight Sonata'. ?:",
		"Cleopatra: The last active ruler of the Ptolemaic Kingdom of Egypt. Alexander the Great: A king of the ancient Greek kingdom of Macedon. ?:",
		"Thomas Edison: Inventor of the practical electric light bulb and the phonograph. Alexander Graham Bell: Inventor of the telephone. ?:",
		"William Shakespeare: Author of 'Romeo and Juliet' and 'Hamlet'. Mark Twain: Author of 'The Adventures of Tom Sawyer' and 'Adventures of Huckleberry Finn'. ?:",
	},
	CategoryMinimal: {
		"The answer is ?:",
		"?:",
		"Complete: ?:",
		"Name: ?:",
		"Entity: ?:",
		"Describe ?:",
		"What is ?:",
		"Information about ?:",
		"Here is information on ?:",
	},
	CategoryContextual: {
		"In the context of influential scientists who revolutionized our understanding of the universe, consider the following. Albert Einstein was a theoretical physicist who developed the theory of relativity. Marie Curie was a physicist and chemist who conducted pioneering research on radioactivity. Now, describe ?:",
		"During the Renaissance, a period of great cultural change and artistic development in Europe, Leonardo da Vinci was a painter, architect, and inventor. In the same era, Michelangelo was a sculptor, painter, and architect. In this context, who was ?:",
		"In the history of major European capitals, Rome is the capital of Italy and is known for its ancient Roman ruins. Berlin is the capital of Germany, known for its vibrant arts scene and historical significance. In this context, what is ?:",
		"Within the realm of great artistic achievements, Leonardo da Vinci painted the 'Mona Lisa', one of the world's most famous portraits. Michelangelo sculpted 'David', a masterpiece of High Renaissance sculpture. Following this pattern of artists and their masterpieces, describe ?:",
	},
	CategoryStandard: {
		"Describe the following entity in one sentence: ?:",
		"Complete the following fact. ?:",
		"You are a helpful assistant. Provide a summary of the entity ?:",
		"Provide the following information for ?: \n- Field: \n- Main Achievement:",
		"? is known for",
	},
}

var defaultKeywords = map[string][]string{
	"George Washington":       {"president", "first", "united states", "america", "washington", "founding father", "general"},
	"Albert Einstein":         {"physicist", "relativity", "scientist", "german", "e=mc^2", "theory of relativity"},
	"Marie Curie":             {"physicist", "chemist", "nobel prize", "radioactivity", "scientist", "polish", "french"},
	"Leonardo da Vinci":       {"artist", "inventor", "renaissance", "mona lisa", "painter", "italian"},
	"Cleopatra VII":           {"queen", "egypt", "pharaoh", "ptolemaic", "egyptian", "ruler"},
	"Aristotle":               {"philosopher", "ancient", "greek", "logic", "ethics", "student of plato"},
	"William Shakespeare":     {"playwright", "english", "writer", "hamlet", "poet", "bard"},
	"Wolfgang Amadeus Mozart": {"composer", "classical", "music", "austrian", "symphony", "opera"},
	"Napoleon Bonaparte":      {"emperor", "french", "military", "leader", "waterloo"},
	"Isaac Newton":            {"physicist", "gravity", "laws of motion", "mathematics", "scientist", "english"},
	"Charles Darwin":          {"evolution", "naturalist", "on the origin of species", "biologist", "scientist"},
	"Vincent van Gogh":        {"painter", "dutch", "post-impressionist", "starry night", "artist"},
	"Ada Lovelace":            {"mathematician", "writer", "charles babbage", "analytical engine", "programmer"},
	"Martin Luther King Jr.":  {"civil rights", "leader", "activist", "i have a dream", "minister"},
}
