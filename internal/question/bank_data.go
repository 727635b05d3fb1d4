package question

import "github.com/tgaller/triviador-server/internal/model"

// The built-in set keeps matches playable with no database configured. The
// production deployment loads its bank from Postgres.

func builtinQuestions() []model.Question {
	return []model.Question{
		{ID: 1, Text: "Which river crosses Budapest?", Options: [4]string{"Tisza", "Danube", "Dráva", "Rába"}, Correct: 2, Category: "geography"},
		{ID: 2, Text: "Which lake is the largest in Central Europe?", Options: [4]string{"Lake Balaton", "Lake Neusiedl", "Lake Velence", "Lake Tisza"}, Correct: 1, Category: "geography"},
		{ID: 3, Text: "In which year was the Hungarian State founded?", Options: [4]string{"896", "1000", "1222", "1526"}, Correct: 2, Category: "history"},
		{ID: 4, Text: "Which county seat lies on the river Tisza?", Options: [4]string{"Pécs", "Győr", "Szeged", "Sopron"}, Correct: 3, Category: "geography"},
		{ID: 5, Text: "Who composed the Hungarian national anthem's music?", Options: [4]string{"Ferenc Erkel", "Béla Bartók", "Zoltán Kodály", "Franz Liszt"}, Correct: 1, Category: "culture"},
		{ID: 6, Text: "Which mountain is the highest point of Hungary?", Options: [4]string{"Kékes", "Galyatető", "Írott-kő", "Dobogókő"}, Correct: 1, Category: "geography"},
		{ID: 7, Text: "How many chambers does the human heart have?", Options: [4]string{"Two", "Three", "Four", "Five"}, Correct: 3, Category: "science"},
		{ID: 8, Text: "Which planet is closest to the Sun?", Options: [4]string{"Venus", "Mercury", "Mars", "Earth"}, Correct: 2, Category: "science"},
		{ID: 9, Text: "Which city hosted the first modern Olympic Games?", Options: [4]string{"Paris", "Rome", "Athens", "London"}, Correct: 3, Category: "sport"},
		{ID: 10, Text: "What is the chemical symbol of gold?", Options: [4]string{"Ag", "Au", "Gd", "Go"}, Correct: 2, Category: "science"},
		{ID: 11, Text: "Which of these is NOT a Hungarian county?", Options: [4]string{"Tolna", "Zala", "Bihar", "Somogy"}, Correct: 3, Category: "geography"},
		{ID: 12, Text: "Who wrote the tragedy 'Bánk bán'?", Options: [4]string{"Mór Jókai", "József Katona", "Sándor Petőfi", "Imre Madách"}, Correct: 2, Category: "culture"},
		{ID: 13, Text: "Which ocean is the largest?", Options: [4]string{"Atlantic", "Indian", "Arctic", "Pacific"}, Correct: 4, Category: "geography"},
		{ID: 14, Text: "How many strings does a violin have?", Options: [4]string{"Four", "Five", "Six", "Seven"}, Correct: 1, Category: "culture"},
		{ID: 15, Text: "Which king founded the Hungarian Golden Bull?", Options: [4]string{"Stephen I", "Andrew II", "Béla IV", "Matthias I"}, Correct: 2, Category: "history"},
		{ID: 16, Text: "What is the capital of Austria?", Options: [4]string{"Graz", "Salzburg", "Vienna", "Linz"}, Correct: 3, Category: "geography"},
	}
}

func builtinTips() []model.TipQuestion {
	return []model.TipQuestion{
		{ID: 1, Text: "How many kilometres long is the Danube?", Answer: 2850, Max: 5000, Category: "geography"},
		{ID: 2, Text: "In which year was the Chain Bridge in Budapest opened?", Answer: 1849, Max: 2000, Category: "history"},
		{ID: 3, Text: "How many counties border Pest county?", Answer: 6, Max: 20, Category: "geography"},
		{ID: 4, Text: "How many metres tall is the Kékes?", Answer: 1014, Max: 3000, Category: "geography"},
		{ID: 5, Text: "How many keys does a standard piano have?", Answer: 88, Max: 200, Category: "culture"},
		{ID: 6, Text: "How many minutes does a football match last?", Answer: 90, Max: 200, Category: "sport"},
		{ID: 7, Text: "In which year did the first man walk on the Moon?", Answer: 1969, Max: 2000, Category: "science"},
		{ID: 8, Text: "How many bones does an adult human body have?", Answer: 206, Max: 500, Category: "science"},
	}
}
