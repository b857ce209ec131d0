/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package syncthink

import (
	"math/rand"
	"strings"
)

// Shuffler permutes n elements through swap, with the signature of rand.Shuffle.
type Shuffler func(n int, swap func(i, j int))

// DefaultQuestions is the prompt set used when no questions file is configured.
var DefaultQuestions = []string{
	"If you were a fruit, which one would you be?",
	"What is your secret superpower?",
	"What is your favorite animal?",
	"What is your favorite color?",
	"What is your favorite dish?",
	"What is your favorite movie?",
	"What is your favorite book?",
	"What is your favorite sport?",
	"What is your favorite country?",
	"What is your favorite musical instrument?",
	"Name something you always forget to pack.",
	"Name a word that rhymes with \"cat\".",
	"What do you eat for breakfast?",
	"Name a planet.",
	"What would you bring to a desert island?",
}

// QuestionPool is the immutable prompt set shared by every session.
type QuestionPool struct {
	prompts []string
}

func NewQuestionPool(prompts []string) (*QuestionPool, error) {
	cleaned := make([]string, 0, len(prompts))
	for _, p := range prompts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		cleaned = append(cleaned, p)
	}

	if len(cleaned) == 0 {
		return nil, ErrEmptyQuestionPool
	}

	return &QuestionPool{prompts: cleaned}, nil
}

func (q *QuestionPool) Len() int {
	return len(q.prompts)
}

// Deck is one session's draw order over the pool. It is not safe for
// concurrent use; the owning session serializes access.
type Deck struct {
	pool    *QuestionPool
	shuffle Shuffler
	order   []int
	next    int
	cycles  int
}

func (q *QuestionPool) NewDeck(shuffle Shuffler) *Deck {
	if shuffle == nil {
		shuffle = rand.Shuffle
	}

	return &Deck{
		pool:    q,
		shuffle: shuffle,
	}
}

// Draw returns a prompt that has not been drawn yet in the current cycle,
// reshuffling the whole pool once the cycle runs out.
func (d *Deck) Draw() string {
	if d.next >= len(d.order) {
		d.reshuffle()
	}

	p := d.pool.prompts[d.order[d.next]]
	d.next++

	return p
}

// Cycles reports how many shuffled passes over the pool have been started.
func (d *Deck) Cycles() int {
	return d.cycles
}

func (d *Deck) reshuffle() {
	n := len(d.pool.prompts)
	if cap(d.order) < n {
		d.order = make([]int, n)
	}
	d.order = d.order[:n]
	for i := range d.order {
		d.order[i] = i
	}

	d.shuffle(n, func(i, j int) {
		d.order[i], d.order[j] = d.order[j], d.order[i]
	})

	d.next = 0
	d.cycles++
}
