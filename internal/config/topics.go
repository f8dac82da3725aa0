package config

// DefaultTopics is the stock topic table. Each round's ballot is drawn from
// the keys; the secret word is drawn from the winning topic's list.
func DefaultTopics() map[string][]string {
	return map[string][]string{
		"Animals":        {"Lion", "Elephant", "Giraffe", "Zebra", "Monkey", "Tiger", "Bear", "Dolphin", "Penguin", "Kangaroo"},
		"Food":           {"Pizza", "Burger", "Sushi", "Pasta", "Taco", "Salad", "Sandwich", "Soup", "Steak", "Ice Cream"},
		"Colors":         {"Red", "Blue", "Green", "Yellow", "Purple", "Orange", "Pink", "Black", "White", "Brown"},
		"Countries":      {"USA", "Japan", "France", "Brazil", "Australia", "Canada", "Italy", "Spain", "Germany", "China"},
		"Sports":         {"Soccer", "Basketball", "Tennis", "Baseball", "Swimming", "Golf", "Hockey", "Volleyball", "Cricket", "Rugby"},
		"Movies":         {"Inception", "Titanic", "Avatar", "Gladiator", "Jaws", "Frozen", "Shrek", "Rocky", "Moana", "Up"},
		"Jobs":           {"Doctor", "Teacher", "Engineer", "Chef", "Pilot", "Nurse", "Lawyer", "Farmer", "Firefighter", "Artist"},
		"School":         {"Homework", "Exam", "Pencil", "Backpack", "Locker", "Classroom", "Recess", "Principal", "Notebook", "Chalkboard"},
		"Technology":     {"Laptop", "Smartphone", "Keyboard", "Mouse", "WiFi", "Bluetooth", "Drone", "Robot", "Server", "Headphones"},
		"Video Games":    {"Minecraft", "Fortnite", "Tetris", "Pac-Man", "Zelda", "Mario", "Sonic", "Pokemon", "Among Us", "Portal"},
		"Music":          {"Guitar", "Piano", "Drums", "Violin", "Trumpet", "Microphone", "Concert", "Playlist", "DJ", "Singer"},
		"Transportation": {"Car", "Bus", "Train", "Bicycle", "Motorcycle", "Helicopter", "Subway", "Taxi", "Boat", "Scooter"},
		"Weather":        {"Rain", "Snow", "Thunder", "Lightning", "Cloud", "Wind", "Fog", "Hurricane", "Tornado", "Sunshine"},
		"Nature":         {"Mountain", "River", "Ocean", "Forest", "Desert", "Volcano", "Waterfall", "Island", "Cave", "Beach"},
		"Clothing":       {"Jacket", "T-Shirt", "Jeans", "Sneakers", "Hat", "Scarf", "Gloves", "Socks", "Dress", "Hoodie"},
		"Fantasy":        {"Dragon", "Wizard", "Knight", "Castle", "Spell", "Potion", "Elf", "Orc", "Unicorn", "Phoenix"},
		"Space":          {"Planet", "Star", "Moon", "Rocket", "Astronaut", "Galaxy", "Comet", "Meteor", "Satellite", "Alien"},
		"Kitchen":        {"Oven", "Pan", "Knife", "Fork", "Blender", "Microwave", "Plate", "Cup", "Kettle", "Cutting Board"},
		"Ocean Life":     {"Shark", "Whale", "Octopus", "Jellyfish", "Crab", "Lobster", "Seal", "Starfish", "Coral", "Seahorse"},
		"Superheroes":    {"Superman", "Batman", "Spider-Man", "Iron Man", "Hulk", "Thor", "Wonder Woman", "Flash", "Aquaman", "Black Panther"},
		"Mythology":      {"Zeus", "Hades", "Poseidon", "Athena", "Apollo", "Hercules", "Medusa", "Pegasus", "Minotaur", "Cyclops"},
		"Board Games":    {"Chess", "Monopoly", "Scrabble", "Clue", "Risk", "Checkers", "Uno", "Catan", "Battleship", "Jenga"},
	}
}
